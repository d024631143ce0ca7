package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/render/nodelink"
)

// renderFlags holds flags for the render command.
type renderFlags struct {
	csrFlags
	output      string
	format      string
	maxNodes    int
	showWeights bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	flags := renderFlags{}

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Draw a small CSR file as a node-link diagram",
		Long: `Render a CSR file with Graphviz. Intended for fixtures and sampled
subgraphs: files with more than --max-nodes nodes are refused.`,
		Example: `  csrconv render graphs/unweighted/triangle -o triangle.svg
  csrconv render graphs/weighted/bitcoin-sample --weighted --directed --show-weights -f png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(args[0], flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: <file>.<format>)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "svg", "svg, png or dot")
	cmd.Flags().IntVar(&flags.maxNodes, "max-nodes", nodelink.DefaultMaxNodes, "refuse larger graphs")
	cmd.Flags().BoolVar(&flags.showWeights, "show-weights", false, "label edges with their weight")

	return cmd
}

func (c *CLI) runRender(path string, flags renderFlags) error {
	format := strings.ToLower(flags.format)
	switch format {
	case "svg", "png", "dot":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: svg, png, dot)", flags.format)
	}

	g, err := flags.read(path)
	if err != nil {
		return err
	}
	if err := csr.Validate(g); err != nil {
		return err
	}
	dot, err := nodelink.ToDOT(g, nodelink.Options{ShowWeights: flags.showWeights, MaxNodes: flags.maxNodes})
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	var data []byte
	switch format {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = nodelink.RenderSVG(dot)
	case "png":
		data, err = nodelink.RenderPNG(dot)
	}
	if err != nil {
		return err
	}

	out := flags.output
	if out == "" {
		out = filepath.Base(path) + "." + format
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", out)
	}
	prog.done(fmt.Sprintf("Rendered %d nodes", g.N))
	printFile(out)
	return nil
}
