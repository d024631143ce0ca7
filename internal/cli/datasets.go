package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/pipeline"
	"github.com/matzehuels/csrconv/pkg/source"
)

// datasetsCommand creates the datasets command.
func (c *CLI) datasetsCommand() *cobra.Command {
	var presets bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List catalogue datasets and their conversion status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if presets {
				printPresets()
				return nil
			}
			cat, err := c.loadCatalogue()
			if err != nil {
				return err
			}
			if len(cat.Datasets) == 0 {
				printInfo("No datasets in %s", cat.Path)
				return nil
			}

			var rows [][]string
			for _, job := range cat.Jobs() {
				rows = append(rows, datasetRow(job))
			}
			printTable([]string{"Dataset", "Format", "Input", "Output", "Status"}, rows)
			printDetail("Catalogue: %s", cat.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&presets, "presets", false, "list input format presets instead")
	return cmd
}

// datasetRow describes one catalogue job. Invalid entries are listed with
// the validation error as their status.
func datasetRow(job pipeline.Options) []string {
	input := job.Input
	if err := job.ValidateAndSetDefaults(); err != nil {
		return []string{job.Name, job.Format, input, "", "invalid: " + err.Error()}
	}
	status := "missing input"
	if _, err := os.Stat(job.Input); err == nil {
		status = "pending"
		if _, err := os.Stat(job.OutputPath()); err == nil {
			status = "converted"
		}
	}
	return []string{job.Name, job.Format, input, job.OutputPath(), status}
}

func printPresets() {
	var rows [][]string
	for _, name := range source.PresetNames() {
		p, _ := source.LookupPreset(name)
		ids := "dense"
		if p.Sparse {
			ids = "sparse"
		}
		rows = append(rows, []string{
			p.Name,
			string(p.Format),
			fmt.Sprint(p.Directed),
			fmt.Sprint(p.Weighted),
			fmt.Sprint(p.HeaderLines),
			delimiterName(p.Delimiter),
			fmt.Sprintf("%s, base %d", ids, p.Base),
		})
	}
	printTable([]string{"Preset", "Format", "Directed", "Weighted", "Header", "Delimiter", "Ids"}, rows)
}

func delimiterName(r rune) string {
	switch r {
	case 0:
		return "whitespace"
	case '\t':
		return "tab"
	default:
		return string(r)
	}
}
