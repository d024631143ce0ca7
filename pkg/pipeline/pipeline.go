// Package pipeline runs conversion jobs: one raw dataset file in, one CSR file
// (and optionally a weighted sibling) out.
//
// This package holds the control flow shared by every entry point: option
// validation, the conversion cache, id indexing, converter selection, atomic
// output and batch execution. The CLI only translates flags and catalogue
// entries into [Options].
//
// # Job stages
//
//  1. Fingerprint the input and look the job up in the cache.
//  2. Index: scan the source once to build the id mapping (pass 0).
//  3. Convert: the in-memory builder for small inputs, the chunked converter
//     otherwise (passes 1..k per side).
//  4. Optionally stream the result through csr.AddWeights into weighted/.
//  5. Record a manifest of the outputs in the cache.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Name:      "com-orkut",
//	    Input:     "raw/com-orkut.ungraph.txt",
//	    Format:    "snap-community",
//	    OutputDir: "graphs",
//	})
package pipeline

import (
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/csrconv/pkg/cache"
	"github.com/matzehuels/csrconv/pkg/convert"
	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and catalogue
// =============================================================================

const (
	// DefaultFormat is the input preset used when none is given.
	DefaultFormat = "edgelist"

	// DefaultOutputDir is the root of the weighted/ and unweighted/ trees.
	DefaultOutputDir = "."

	// DefaultAutoChunkBytes is the input size above which auto mode switches
	// from the in-memory builder to the chunked converter.
	DefaultAutoChunkBytes = int64(1 << 30)

	// DefaultWindowSize is the chunked window when neither a window size nor
	// a memory budget is configured.
	DefaultWindowSize = 500_000
)

// Mode selects the converter.
type Mode string

// Converter modes.
const (
	ModeAuto    Mode = "auto"
	ModeMemory  Mode = "memory"
	ModeChunked Mode = "chunked"
)

// ValidModes is the set of supported converter modes.
var ValidModes = map[Mode]bool{
	ModeAuto:    true,
	ModeMemory:  true,
	ModeChunked: true,
}

// Output subdirectories.
const (
	DirWeighted   = "weighted"
	DirUnweighted = "unweighted"
)

// =============================================================================
// Options - Job Configuration
// =============================================================================

// Options contains all configuration for one conversion job.
//
// Format names a source preset. The pointer fields override the preset's
// defaults when set; nil keeps the preset value.
type Options struct {
	// Input options
	Name        string  `json:"name" toml:"name"`
	Input       string  `json:"input" toml:"input"`
	Format      string  `json:"format,omitempty" toml:"format"`
	Directed    *bool   `json:"directed,omitempty" toml:"directed"`
	Weighted    *bool   `json:"weighted,omitempty" toml:"weighted"`
	HeaderLines *int    `json:"header_lines,omitempty" toml:"header_lines"`
	Comment     *string `json:"comment,omitempty" toml:"comment"`
	Delimiter   string  `json:"delimiter,omitempty" toml:"delimiter"` // "tab", "comma", "whitespace" or a single character
	IDMode      string  `json:"id_mode,omitempty" toml:"id_mode"`     // "dense" or "sparse"
	Base        *int64  `json:"base,omitempty" toml:"base"`

	// Conversion options
	Mode           Mode   `json:"mode,omitempty" toml:"mode"`
	WindowSize     int    `json:"window,omitempty" toml:"window"`
	MemoryBudget   int64  `json:"memory_budget,omitempty" toml:"memory_budget"`
	AutoChunkBytes int64  `json:"auto_chunk_bytes,omitempty" toml:"auto_chunk_bytes"`
	Encoding       string `json:"encoding,omitempty" toml:"encoding"`

	// Output options
	OutputDir  string `json:"output_dir,omitempty" toml:"output_dir"`
	AddWeights bool   `json:"add_weights,omitempty" toml:"add_weights"`
	MaxWeight  int64  `json:"max_weight,omitempty" toml:"max_weight"`
	Seed       uint64 `json:"seed,omitempty" toml:"seed"`
	Refresh    bool   `json:"refresh,omitempty" toml:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// Resolved by ValidateAndSetDefaults.
	preset    source.Preset
	source    source.Options
	idMode    remap.Mode
	base      int64
	encoding  csr.Encoding
	validated bool
}

// Result describes a finished job.
type Result struct {
	JobID   string
	Dataset string

	// Mode is the converter that ran; empty on a cache hit.
	Mode Mode

	// Output is the CSR file; WeightedOutput is set when AddWeights ran.
	Output         string
	WeightedOutput string

	Stats convert.Stats

	// CacheHit reports that the outputs were already up to date.
	CacheHit bool
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields, resolves the preset and
// applies defaults. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := errors.ValidatePath(o.Input); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "input")
	}
	if o.Name == "" {
		o.Name = datasetName(o.Input)
	}
	if err := errors.ValidateDatasetName(o.Name); err != nil {
		return err
	}

	if o.Format == "" {
		o.Format = DefaultFormat
	}
	preset, err := source.LookupPreset(o.Format)
	if err != nil {
		return err
	}
	o.preset = preset
	if err := o.resolveSource(); err != nil {
		return err
	}

	if o.Mode == "" {
		o.Mode = ModeAuto
	}
	if !ValidModes[o.Mode] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid mode: %q (must be one of: auto, memory, chunked)", o.Mode)
	}
	if o.WindowSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "window size %d is negative", o.WindowSize)
	}
	if o.MemoryBudget < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "memory budget %d is negative", o.MemoryBudget)
	}
	if o.WindowSize == 0 && o.MemoryBudget == 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.AutoChunkBytes == 0 {
		o.AutoChunkBytes = DefaultAutoChunkBytes
	}

	if o.Encoding == "" {
		o.Encoding = string(csr.Text)
	}
	enc, err := csr.ParseEncoding(o.Encoding)
	if err != nil {
		return err
	}
	o.encoding = enc

	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.AddWeights {
		if o.source.Weighted {
			return errors.New(errors.ErrCodeInvalidConfig, "dataset %s is already weighted; add_weights needs an unweighted input", o.Name)
		}
		if o.MaxWeight < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "max weight %d is negative", o.MaxWeight)
		}
		if o.MaxWeight == 0 {
			o.MaxWeight = csr.DefaultMaxWeight
		}
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// resolveSource applies the per-field overrides on top of the preset.
func (o *Options) resolveSource() error {
	p := o.preset
	src := p.Options(o.Input, o.Name)
	if o.Directed != nil {
		src.Directed = *o.Directed
	}
	if o.Weighted != nil {
		src.Weighted = *o.Weighted
	}
	if o.HeaderLines != nil {
		if *o.HeaderLines < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "header_lines %d is negative", *o.HeaderLines)
		}
		src.HeaderLines = *o.HeaderLines
	}
	if o.Comment != nil {
		src.Comment = *o.Comment
	}
	if o.Delimiter != "" {
		d, err := ParseDelimiter(o.Delimiter)
		if err != nil {
			return err
		}
		src.Delimiter = d
	}
	o.source = src

	o.idMode = remap.ModeDense
	if p.Sparse {
		o.idMode = remap.ModeSparse
	}
	switch o.IDMode {
	case "":
	case string(remap.ModeDense), string(remap.ModeSparse):
		o.idMode = remap.Mode(o.IDMode)
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid id_mode: %q (must be one of: dense, sparse)", o.IDMode)
	}

	o.base = p.Base
	if o.Base != nil {
		o.base = *o.Base
	}
	return nil
}

// ParseDelimiter converts a delimiter name or single character to the rune
// used by the sources. "whitespace" maps to 0, which splits on any run of
// spaces and tabs.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "whitespace", "space":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig, "invalid delimiter: %q", s)
}

// SourceOptions returns the resolved source options. Only valid after
// ValidateAndSetDefaults.
func (o *Options) SourceOptions() source.Options { return o.source }

// OutputPath returns <output_dir>/{weighted|unweighted}/<name>.
func (o *Options) OutputPath() string {
	dir := DirUnweighted
	if o.source.Weighted {
		dir = DirWeighted
	}
	return filepath.Join(o.OutputDir, dir, o.Name)
}

// WeightedPath returns where AddWeights writes the weighted sibling.
func (o *Options) WeightedPath() string {
	return filepath.Join(o.OutputDir, DirWeighted, o.Name)
}

// ConvertOptions returns the options handed to the converter.
func (o *Options) ConvertOptions() convert.Options {
	return convert.Options{
		Dataset:      o.Name,
		WindowSize:   o.WindowSize,
		MemoryBudget: o.MemoryBudget,
		Logger:       o.Logger,
	}
}

// ConversionKeyOpts returns cache key options. Everything that changes the
// bytes written is included.
func (o *Options) ConversionKeyOpts() cache.ConversionKeyOpts {
	k := cache.ConversionKeyOpts{
		Format:      string(o.preset.Format),
		Directed:    o.source.Directed,
		Weighted:    o.source.Weighted,
		HeaderLines: o.source.HeaderLines,
		Comment:     o.source.Comment,
		Delimiter:   o.source.Delimiter,
		IDMode:      string(o.idMode),
		Base:        o.base,
		Encoding:    string(o.encoding),
		Output:      o.OutputPath(),
	}
	if o.AddWeights {
		k.AddWeights = true
		k.MaxWeight = o.MaxWeight
		k.Seed = o.Seed
	}
	return k
}

// selectMode resolves auto mode from the input size.
func (o *Options) selectMode(inputSize int64) Mode {
	if o.Mode != ModeAuto {
		return o.Mode
	}
	if inputSize > o.AutoChunkBytes {
		return ModeChunked
	}
	return ModeMemory
}

// datasetName derives a dataset name from an input path:
// "raw/com-orkut.ungraph.txt" becomes "com-orkut".
func datasetName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// since rounds elapsed time for log output.
func since(t time.Time) time.Duration { return time.Since(t).Round(time.Millisecond) }
