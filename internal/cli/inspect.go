package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/csr"
)

// csrFlags describe how to read a CSR file; the format stores neither
// directedness nor weights.
type csrFlags struct {
	directed bool
	weighted bool
	encoding string
}

func (f *csrFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.directed, "directed", false, "file has a reverse side")
	cmd.Flags().BoolVar(&f.weighted, "weighted", false, "records carry weights")
	cmd.Flags().StringVarP(&f.encoding, "encoding", "e", string(csr.Text), "text or binary")
}

func (f *csrFlags) read(path string) (*csr.Graph, error) {
	enc, err := csr.ParseEncoding(f.encoding)
	if err != nil {
		return nil, err
	}
	return csr.ReadFile(path, enc, f.directed, f.weighted)
}

// summary describes the shape of a CSR graph.
type summary struct {
	Nodes, Edges         int64
	MinDeg, MaxDeg       int64
	MeanDeg              float64
	Isolated             int64
	SelfLoops            int64
	MinWeight, MaxWeight int64
}

// summarize expects a graph that passed csr.Validate.
func summarize(g *csr.Graph) summary {
	s := summary{Nodes: int64(g.N), Edges: g.M()}
	if g.N == 0 {
		return s
	}
	s.MinDeg = g.Forward.Degree(0)
	for u := 0; u < g.N; u++ {
		d := g.Forward.Degree(u)
		s.MinDeg = min(s.MinDeg, d)
		s.MaxDeg = max(s.MaxDeg, d)
		if d == 0 {
			s.Isolated++
		}
		for _, r := range g.Forward.Neighbors(u) {
			if int(r.Neighbor) == u {
				s.SelfLoops++
			}
		}
	}
	s.MeanDeg = float64(s.Edges) / float64(g.N)
	for i, r := range g.Forward.Records {
		if i == 0 || r.Weight < s.MinWeight {
			s.MinWeight = r.Weight
		}
		if i == 0 || r.Weight > s.MaxWeight {
			s.MaxWeight = r.Weight
		}
	}
	return s
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	flags := csrFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize and validate a CSR file",
		Long: `Read a CSR file, print its size and degree distribution, and check its
invariants: monotone offsets, neighbors in range, and for directed files that
the reverse side is exactly the transpose of the forward side.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := flags.read(args[0])
			if err != nil {
				return err
			}
			fmt.Println(StyleTitle.Render(args[0]))
			if err := csr.Validate(g); err != nil {
				printKeyValue("nodes", fmt.Sprint(g.N))
				printKeyValue("edges", fmt.Sprint(g.M()))
				printError("invalid: %v", err)
				return err
			}
			s := summarize(g)
			printKeyValue("nodes", fmt.Sprint(s.Nodes))
			printKeyValue("edges", fmt.Sprint(s.Edges))
			printKeyValue("degree", fmt.Sprintf("min %d · max %d · mean %.2f", s.MinDeg, s.MaxDeg, s.MeanDeg))
			printKeyValue("isolated", fmt.Sprint(s.Isolated))
			printKeyValue("self-loops", fmt.Sprint(s.SelfLoops))
			if g.Weighted && s.Edges > 0 {
				printKeyValue("weights", fmt.Sprintf("[%d, %d]", s.MinWeight, s.MaxWeight))
			}
			printSuccess("valid")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
