package source

import (
	"maps"
	"slices"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// Format names a raw file layout.
type Format string

// Supported raw formats.
const (
	FormatEdgeList Format = "edgelist"
	FormatCSV      Format = "csv"
	FormatLigra    Format = "ligra"
)

// Preset bundles a format with the layout details of a family of datasets.
type Preset struct {
	Name   string
	Format Format

	// Defaults applied to Options by Open. Path and Name always come from
	// the caller.
	Directed    bool
	Weighted    bool
	HeaderLines int
	Comment     string
	Delimiter   rune

	// Sparse means ids are arbitrary and need a dense remap table.
	// Otherwise ids are used directly after subtracting Base.
	Sparse bool
	Base   int64
}

var presets = map[string]Preset{
	// Dense, 0-based whitespace edge lists (SNAP ego-Facebook).
	"edgelist": {
		Name:   "edgelist",
		Format: FormatEdgeList,
	},
	// Directed whitespace edge lists with arbitrary account ids
	// (SNAP ego-Twitter, ego-Gplus).
	"snap-social": {
		Name:     "snap-social",
		Format:   FormatEdgeList,
		Directed: true,
		Sparse:   true,
	},
	// Bulk community graphs (com-Orkut, com-Youtube, com-Friendster): four
	// comment lines, data from line 5, tab separated, 1-based sparse ids.
	"snap-community": {
		Name:        "snap-community",
		Format:      FormatEdgeList,
		HeaderLines: 4,
		Delimiter:   '\t',
		Sparse:      true,
		Base:        1,
	},
	// Signed trust networks (soc-sign-bitcoin-otc, -alpha):
	// source,target,rating,time.
	"signed-csv": {
		Name:     "signed-csv",
		Format:   FormatCSV,
		Directed: true,
		Weighted: true,
		Sparse:   true,
	},
	// Ligra adjacency files from rMatGraph / SNAPtoAdj.
	"ligra": {
		Name:     "ligra",
		Format:   FormatLigra,
		Directed: true,
	},
}

// LookupPreset returns the preset with the given name. Bare format names
// ("csv") resolve to a preset with that format and no other defaults.
func LookupPreset(name string) (Preset, error) {
	if p, ok := presets[name]; ok {
		return p, nil
	}
	switch f := Format(name); f {
	case FormatEdgeList, FormatCSV, FormatLigra:
		return Preset{Name: name, Format: f}, nil
	}
	return Preset{}, errors.New(errors.ErrCodeUnsupportedFormat,
		"unknown input format %q (known: %v)", name, PresetNames())
}

// PresetNames returns the names of all presets in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Options returns the preset's defaults for the given file.
func (p Preset) Options(path, name string) Options {
	return Options{
		Path:        path,
		Name:        name,
		Directed:    p.Directed,
		Weighted:    p.Weighted,
		HeaderLines: p.HeaderLines,
		Comment:     p.Comment,
		Delimiter:   p.Delimiter,
	}
}

// Open creates a Source of the preset's format with the given options.
func (p Preset) Open(opts Options) (Source, error) {
	return New(p.Format, opts)
}

// New creates a Source for format.
func New(format Format, opts Options) (Source, error) {
	if err := errors.ValidatePath(opts.Path); err != nil {
		return nil, err
	}
	switch format {
	case FormatEdgeList:
		return NewEdgeList(opts), nil
	case FormatCSV:
		return NewCSV(opts), nil
	case FormatLigra:
		return NewLigra(opts)
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedFormat, "unsupported format %q", format)
	}
}
