// Package config loads the dataset catalogue: a TOML file listing the raw
// datasets to convert and the defaults they share.
//
// # File format
//
//	[defaults]
//	output_dir = "graphs"
//	work_dir   = "raw"
//	mode       = "auto"
//	window     = 500000
//	encoding   = "text"
//
//	[[dataset]]
//	name   = "com-orkut"
//	input  = "com-orkut.ungraph.txt"
//	format = "snap-community"
//
//	[[dataset]]
//	name        = "ego-facebook"
//	input       = "facebook_combined.txt"
//	add_weights = true
//
// Relative inputs resolve against work_dir, which itself resolves against the
// catalogue's directory. Dataset entries accept every field of
// [pipeline.Options]; fields left out inherit from [defaults].
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/pipeline"
)

// DefaultFile is the catalogue looked up in the working directory.
const DefaultFile = "csrconv.toml"

// Defaults are shared by every dataset in the catalogue.
type Defaults struct {
	OutputDir      string        `toml:"output_dir"`
	WorkDir        string        `toml:"work_dir"`
	Mode           pipeline.Mode `toml:"mode"`
	WindowSize     int           `toml:"window"`
	MemoryBudget   int64         `toml:"memory_budget"`
	AutoChunkBytes int64         `toml:"auto_chunk_bytes"`
	Encoding       string        `toml:"encoding"`
	MaxWeight      int64         `toml:"max_weight"`
	Seed           uint64        `toml:"seed"`
}

// Catalogue is a parsed catalogue file.
type Catalogue struct {
	Defaults Defaults           `toml:"defaults"`
	Datasets []pipeline.Options `toml:"dataset"`

	// Path is the file the catalogue was loaded from.
	Path string `toml:"-"`
}

// Load reads and validates the catalogue at path.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read catalogue")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	c.Path = path
	c.resolveDirs(filepath.Dir(path))
	return c, nil
}

// Parse decodes catalogue TOML and validates it. Relative paths are left as
// they are.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse catalogue")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown catalogue key %q", undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every dataset has a unique name and an input.
func (c *Catalogue) Validate() error {
	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.Name == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "dataset %d has no name", i+1)
		}
		if err := errors.ValidateDatasetName(d.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "dataset %d", i+1)
		}
		if seen[d.Name] {
			return errors.New(errors.ErrCodeInvalidConfig, "dataset %q is listed twice", d.Name)
		}
		seen[d.Name] = true
		if d.Input == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "dataset %q has no input", d.Name)
		}
	}
	return nil
}

func (c *Catalogue) resolveDirs(base string) {
	if c.Defaults.WorkDir != "" && !filepath.IsAbs(c.Defaults.WorkDir) {
		c.Defaults.WorkDir = filepath.Join(base, c.Defaults.WorkDir)
	}
	if c.Defaults.OutputDir != "" && !filepath.IsAbs(c.Defaults.OutputDir) {
		c.Defaults.OutputDir = filepath.Join(base, c.Defaults.OutputDir)
	}
	if c.Defaults.WorkDir == "" {
		c.Defaults.WorkDir = base
	}
}

// Names returns the dataset names in catalogue order.
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}
	return names
}

// Job returns the job options for the named dataset with the defaults
// applied.
func (c *Catalogue) Job(name string) (pipeline.Options, error) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return c.apply(d), nil
		}
	}
	return pipeline.Options{}, errors.New(errors.ErrCodeInvalidInput, "no dataset %q in catalogue (known: %v)", name, c.Names())
}

// Jobs returns the job options of every dataset.
func (c *Catalogue) Jobs() []pipeline.Options {
	jobs := make([]pipeline.Options, len(c.Datasets))
	for i, d := range c.Datasets {
		jobs[i] = c.apply(d)
	}
	return jobs
}

func (c *Catalogue) apply(d pipeline.Options) pipeline.Options {
	def := c.Defaults
	if !filepath.IsAbs(d.Input) && def.WorkDir != "" {
		d.Input = filepath.Join(def.WorkDir, d.Input)
	}
	if d.OutputDir == "" {
		d.OutputDir = def.OutputDir
	}
	if d.Mode == "" {
		d.Mode = def.Mode
	}
	if d.WindowSize == 0 && d.MemoryBudget == 0 {
		d.WindowSize = def.WindowSize
		d.MemoryBudget = def.MemoryBudget
	}
	if d.AutoChunkBytes == 0 {
		d.AutoChunkBytes = def.AutoChunkBytes
	}
	if d.Encoding == "" {
		d.Encoding = def.Encoding
	}
	if d.MaxWeight == 0 {
		d.MaxWeight = def.MaxWeight
	}
	if d.Seed == 0 {
		d.Seed = def.Seed
	}
	return d
}
