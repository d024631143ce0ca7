package pipeline

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/csrconv/pkg/cache"
	"github.com/matzehuels/csrconv/pkg/convert"
	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/observability"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

// keyTypeConversion labels conversion lookups for the cache hooks.
const keyTypeConversion = "conversion"

// Runner executes conversion jobs with caching.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options; every
// job owns its id mapping, degree array and output file.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// manifest is the cached record of a finished job.
type manifest struct {
	JobID          string        `json:"job_id"`
	Dataset        string        `json:"dataset"`
	Mode           Mode          `json:"mode"`
	Output         string        `json:"output"`
	WeightedOutput string        `json:"weighted_output,omitempty"`
	Stats          convert.Stats `json:"stats"`
	CreatedAt      time.Time     `json:"created_at"`
}

// outputs lists the files the manifest vouches for.
func (m *manifest) outputs() []string {
	if m.WeightedOutput != "" {
		return []string{m.Output, m.WeightedOutput}
	}
	return []string{m.Output}
}

// Execute runs one conversion job: cache lookup, index scan, conversion and
// the optional weighted sibling.
func (r *Runner) Execute(ctx context.Context, opts Options) (result *Result, err error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	logger := opts.Logger.With("dataset", opts.Name)
	opts.Logger = logger

	fp, err := cache.FingerprintFile(opts.Input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "stat input %s", opts.Input)
	}
	key := r.Keyer.ConversionKey(fp, opts.ConversionKeyOpts())

	if !opts.Refresh {
		if m, ok := r.lookup(ctx, key); ok {
			logger.Info("outputs up to date", "output", m.Output, "cached_job", m.JobID)
			return &Result{
				JobID:          m.JobID,
				Dataset:        m.Dataset,
				Output:         m.Output,
				WeightedOutput: m.WeightedOutput,
				Stats:          m.Stats,
				CacheHit:       true,
			}, nil
		}
	}

	mode := opts.selectMode(fp.Size)
	hooks := observability.Convert()
	hooks.OnJobStart(ctx, opts.Name, string(mode))
	start := time.Now()
	defer func() {
		var nodes, edges int64
		if result != nil {
			nodes, edges = result.Stats.Nodes, result.Stats.Edges
		}
		hooks.OnJobComplete(ctx, opts.Name, string(mode), nodes, edges, time.Since(start), err)
	}()

	logger.Info("converting", "input", opts.Input, "format", opts.Format, "mode", mode, "job", jobID)

	src, err := opts.preset.Open(opts.source)
	if err != nil {
		return nil, err
	}
	m, indexed, err := r.index(ctx, src, &opts)
	if err != nil {
		return nil, err
	}

	result = &Result{JobID: jobID, Dataset: opts.Name, Mode: mode, Output: opts.OutputPath()}
	stats, err := r.convert(ctx, src, m, mode, &opts)
	if err != nil {
		return nil, err
	}
	if indexed {
		stats.Passes++
	}
	stats.Duration = time.Since(start)
	result.Stats = *stats

	if opts.AddWeights {
		result.WeightedOutput = opts.WeightedPath()
		if err := r.addWeights(&opts); err != nil {
			return nil, err
		}
	}

	logger.Info("converted",
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"passes", stats.Passes,
		"bytes", stats.Bytes,
		"duration", since(start))

	r.store(ctx, key, &manifest{
		JobID:          jobID,
		Dataset:        opts.Name,
		Mode:           mode,
		Output:         result.Output,
		WeightedOutput: result.WeightedOutput,
		Stats:          result.Stats,
		CreatedAt:      time.Now().UTC(),
	})
	return result, nil
}

// lookup returns the cached manifest for key if every output it lists still
// exists.
func (r *Runner) lookup(ctx context.Context, key string) (*manifest, bool) {
	hooks := observability.Cache()
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache lookup failed", "error", err)
	}
	if err != nil || !hit {
		hooks.OnCacheMiss(ctx, keyTypeConversion)
		return nil, false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		hooks.OnCacheMiss(ctx, keyTypeConversion)
		return nil, false
	}
	for _, path := range m.outputs() {
		if _, err := os.Stat(path); err != nil {
			hooks.OnCacheMiss(ctx, keyTypeConversion)
			return nil, false
		}
	}
	hooks.OnCacheHit(ctx, keyTypeConversion)
	return &m, true
}

func (r *Runner) store(ctx context.Context, key string, m *manifest) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLConversion); err != nil {
		r.Logger.Warn("cache store failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeConversion, len(data))
}

// index runs pass 0. It reports whether the source was actually scanned:
// dense sources that know their node count need no index scan.
func (r *Runner) index(ctx context.Context, src source.Source, opts *Options) (remap.Mapper, bool, error) {
	_, sized := src.(source.Sized)
	scanned := opts.idMode == remap.ModeSparse || !sized

	hooks := observability.Convert()
	var counter *countingSource
	if scanned {
		counter = &countingSource{Source: src}
		src = counter
		hooks.OnPassStart(ctx, opts.Name, "", 0)
	}
	start := time.Now()
	m, err := remap.Build(ctx, src, opts.idMode, opts.base)
	if scanned {
		hooks.OnPassComplete(ctx, opts.Name, "", 0, counter.n, time.Since(start), err)
	}
	if err != nil {
		return nil, false, &errors.StageError{Dataset: opts.Name, Pass: 0, Err: err}
	}
	opts.Logger.Info("indexed ids", "mode", opts.idMode, "nodes", m.Len(), "duration", since(start))
	return m, scanned, nil
}

// countingSource counts the edges yielded by its passes.
type countingSource struct {
	source.Source
	n int64
}

func (s *countingSource) Edges(ctx context.Context) iter.Seq2[source.RawEdge, error] {
	return func(yield func(source.RawEdge, error) bool) {
		for e, err := range s.Source.Edges(ctx) {
			if err == nil {
				s.n++
			}
			if !yield(e, err) {
				return
			}
		}
	}
}

// convert writes the CSR file with the selected converter.
func (r *Runner) convert(ctx context.Context, src source.Source, m remap.Mapper, mode Mode, opts *Options) (*convert.Stats, error) {
	f, err := csr.Create(opts.OutputPath())
	if err != nil {
		return nil, err
	}
	defer f.Abort()

	enc := csr.NewEncoder(f, opts.encoding, opts.source.Weighted)
	run := convert.Memory
	if mode == ModeChunked {
		run = convert.Chunked
	}
	stats, err := run(ctx, src, m, enc, opts.ConvertOptions())
	if err != nil {
		return nil, err
	}
	if err := f.Commit(); err != nil {
		return nil, err
	}
	return stats, nil
}

// addWeights streams the committed unweighted output into its weighted
// sibling.
func (r *Runner) addWeights(opts *Options) error {
	in, err := os.Open(opts.OutputPath())
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "open %s", opts.OutputPath())
	}
	defer in.Close()

	out, err := csr.Create(opts.WeightedPath())
	if err != nil {
		return err
	}
	defer out.Abort()

	start := time.Now()
	err = csr.AddWeights(
		csr.NewDecoder(in, opts.encoding, false),
		csr.NewEncoder(out, opts.encoding, true),
		csr.WeightOptions{Directed: opts.source.Directed, Max: opts.MaxWeight, Seed: opts.Seed},
	)
	if err != nil {
		return err
	}
	if err := out.Commit(); err != nil {
		return err
	}
	opts.Logger.Info("added weights", "output", opts.WeightedPath(), "max", opts.MaxWeight, "duration", since(start))
	return nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
