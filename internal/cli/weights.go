package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
)

// weightsFlags holds flags for the weights command.
type weightsFlags struct {
	directed  bool
	encoding  string
	maxWeight int64
	seed      uint64
}

// weightsCommand creates the weights command.
func (c *CLI) weightsCommand() *cobra.Command {
	flags := weightsFlags{}

	cmd := &cobra.Command{
		Use:   "weights <input> <output>",
		Short: "Attach random weights to an unweighted CSR file",
		Long: `Copy an unweighted CSR file, attaching a uniform random integer weight in
[0, max-weight] to every record. Offsets are unchanged. An edge and its
transposed record receive the same weight, so the result still validates.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWeights(args[0], args[1], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.directed, "directed", false, "input has a reverse side")
	cmd.Flags().StringVarP(&flags.encoding, "encoding", "e", string(csr.Text), "encoding of input and output: text or binary")
	cmd.Flags().Int64Var(&flags.maxWeight, "max-weight", csr.DefaultMaxWeight, "largest weight")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "random seed")

	return cmd
}

func (c *CLI) runWeights(input, output string, flags weightsFlags) error {
	enc, err := csr.ParseEncoding(flags.encoding)
	if err != nil {
		return err
	}
	prog := newProgress(c.Logger)

	in, err := os.Open(input)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "open %s", input)
	}
	defer in.Close()

	out, err := csr.Create(output)
	if err != nil {
		return err
	}
	defer out.Abort()

	err = csr.AddWeights(
		csr.NewDecoder(in, enc, false),
		csr.NewEncoder(out, enc, true),
		csr.WeightOptions{Directed: flags.directed, Max: flags.maxWeight, Seed: flags.seed},
	)
	if err != nil {
		return err
	}
	if err := out.Commit(); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Added weights to %s", input))
	printSuccess("Weighted copy written")
	printFile(output)
	return nil
}
