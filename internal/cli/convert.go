package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/metrics"
	"github.com/matzehuels/csrconv/pkg/observability"
	"github.com/matzehuels/csrconv/pkg/pipeline"
)

// convertFlags holds flags for the convert command.
type convertFlags struct {
	all         bool
	jobs        int
	refresh     bool
	metricsFile string

	// Ad-hoc job and per-run overrides
	input          string
	name           string
	format         string
	directed       bool
	weighted       bool
	headerLines    int
	comment        string
	delimiter      string
	idMode         string
	base           int64
	mode           string
	window         int
	memoryBudget   int64
	autoChunkBytes int64
	encoding       string
	outputDir      string
	addWeights     bool
	maxWeight      int64
	seed           uint64
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	flags := convertFlags{}

	cmd := &cobra.Command{
		Use:   "convert [dataset...]",
		Short: "Convert raw datasets to CSR files",
		Long: `Convert raw edge-list datasets to CSR files.

Datasets are taken from the catalogue (see --config) by name, or all of them
with --all. With --input a single file is converted without a catalogue.

Output goes to <output-dir>/weighted/<name> or <output-dir>/unweighted/<name>.
Inputs larger than --auto-chunk-bytes are converted in windows of --window
nodes, re-reading the input once per window so memory stays bounded.`,
		Example: `  # Convert one file
  csrconv convert --input facebook_combined.txt --output-dir graphs

  # Convert a SNAP community graph in 250k-node windows
  csrconv convert --input com-orkut.ungraph.txt --format snap-community --mode chunked --window 250000

  # Convert every catalogue dataset, four at a time
  csrconv convert --all --jobs 4`,
		ValidArgsFunction: c.completeDatasets,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := c.convertJobs(cmd, args, &flags)
			if err != nil {
				return err
			}
			return c.runConvert(cmd.Context(), jobs, &flags)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.all, "all", false, "convert every dataset in the catalogue")
	f.IntVarP(&flags.jobs, "jobs", "j", 1, "datasets converted concurrently")
	f.BoolVar(&flags.refresh, "refresh", false, "convert even if the outputs are up to date")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")

	f.StringVarP(&flags.input, "input", "i", "", "raw dataset file (skips the catalogue)")
	f.StringVar(&flags.name, "name", "", "dataset name (default: input base name)")
	f.StringVarP(&flags.format, "format", "f", "", "input format or preset")
	f.BoolVar(&flags.directed, "directed", false, "treat edges as directed")
	f.BoolVar(&flags.weighted, "weighted", false, "read a weight column")
	f.IntVar(&flags.headerLines, "header-lines", 0, "lines to skip at the top of the input")
	f.StringVar(&flags.comment, "comment", "", "skip lines starting with this prefix")
	f.StringVar(&flags.delimiter, "delimiter", "", "column delimiter: whitespace, tab, comma or a character")
	f.StringVar(&flags.idMode, "id-mode", "", "id mapping: dense or sparse")
	f.Int64Var(&flags.base, "base", 0, "smallest raw id in dense mode")
	f.StringVarP(&flags.mode, "mode", "m", "", "converter: auto, memory or chunked")
	f.IntVarP(&flags.window, "window", "w", 0, "nodes per chunked window")
	f.Int64Var(&flags.memoryBudget, "memory-budget", 0, "bytes of buffered records per window (instead of --window)")
	f.Int64Var(&flags.autoChunkBytes, "auto-chunk-bytes", 0, "input size above which auto mode chunks")
	f.StringVarP(&flags.encoding, "encoding", "e", "", "output encoding: text or binary")
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "root of the weighted/ and unweighted/ trees")
	f.BoolVar(&flags.addWeights, "add-weights", false, "also write a randomly weighted copy")
	f.Int64Var(&flags.maxWeight, "max-weight", 0, "largest random weight (default 10)")
	f.Uint64Var(&flags.seed, "seed", 0, "random weight seed")

	return cmd
}

// convertJobs builds the job list from the catalogue or --input, then applies
// the flags the user set explicitly.
func (c *CLI) convertJobs(cmd *cobra.Command, args []string, flags *convertFlags) ([]pipeline.Options, error) {
	var jobs []pipeline.Options
	switch {
	case flags.input != "":
		if len(args) > 0 || flags.all {
			return nil, fmt.Errorf("--input cannot be combined with dataset names or --all")
		}
		jobs = []pipeline.Options{{Input: flags.input, Name: flags.name}}
	case flags.all || len(args) > 0:
		cat, err := c.loadCatalogue()
		if err != nil {
			return nil, err
		}
		if flags.all {
			jobs = cat.Jobs()
			break
		}
		for _, name := range args {
			job, err := cat.Job(name)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	default:
		return nil, fmt.Errorf("nothing to convert: name datasets, pass --all, or give --input")
	}

	changed := cmd.Flags().Changed
	for i := range jobs {
		o := &jobs[i]
		o.Refresh = flags.refresh
		if changed("format") {
			o.Format = flags.format
		}
		if changed("directed") {
			o.Directed = &flags.directed
		}
		if changed("weighted") {
			o.Weighted = &flags.weighted
		}
		if changed("header-lines") {
			o.HeaderLines = &flags.headerLines
		}
		if changed("comment") {
			o.Comment = &flags.comment
		}
		if changed("delimiter") {
			o.Delimiter = flags.delimiter
		}
		if changed("id-mode") {
			o.IDMode = flags.idMode
		}
		if changed("base") {
			o.Base = &flags.base
		}
		if changed("mode") {
			o.Mode = pipeline.Mode(flags.mode)
		}
		if changed("window") {
			o.WindowSize = flags.window
			o.MemoryBudget = 0
		}
		if changed("memory-budget") {
			o.MemoryBudget = flags.memoryBudget
			if !changed("window") {
				o.WindowSize = 0
			}
		}
		if changed("auto-chunk-bytes") {
			o.AutoChunkBytes = flags.autoChunkBytes
		}
		if changed("encoding") {
			o.Encoding = flags.encoding
		}
		if changed("output-dir") {
			o.OutputDir = flags.outputDir
		}
		if changed("add-weights") {
			o.AddWeights = flags.addWeights
		}
		if changed("max-weight") {
			o.MaxWeight = flags.maxWeight
		}
		if changed("seed") {
			o.Seed = flags.seed
		}
	}
	return jobs, nil
}

func (c *CLI) runConvert(ctx context.Context, jobs []pipeline.Options, flags *convertFlags) error {
	var collector *metrics.Collector
	if flags.metricsFile != "" {
		collector = metrics.New()
		collector.Register()
		defer observability.Reset()
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	results, batchErr := runner.RunBatch(ctx, jobs, flags.jobs)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			name := res.Options.Name
			if name == "" {
				name = res.Options.Input
			}
			printError("%s: %s", name, errors.UserMessage(res.Err))
			continue
		}
		r := res.Result
		printSuccess("%s", r.Dataset)
		printStats(r.Stats.Nodes, r.Stats.Edges, r.CacheHit)
		printFile(r.Output)
		if r.WeightedOutput != "" {
			printFile(r.WeightedOutput)
		}
	}

	if collector != nil {
		if err := collector.WriteTextfile(flags.metricsFile); err != nil {
			printWarning("could not write metrics: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if batchErr != nil {
		return fmt.Errorf("%d of %d datasets failed", failed, len(jobs))
	}
	if len(jobs) > 1 {
		prog.done(fmt.Sprintf("Converted %d datasets", len(jobs)))
	}
	return nil
}
