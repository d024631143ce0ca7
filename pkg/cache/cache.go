// Package cache stores conversion manifests so finished jobs can be skipped.
//
// A conversion is keyed by a fingerprint of its input file together with
// every option that changes the output bytes. The cached value is an opaque
// manifest owned by the caller (pkg/pipeline stores the output paths and
// stats). Three backends are provided:
//
//   - [FileCache]: one JSON file per entry under a local directory
//   - [RedisCache]: a shared Redis instance, for conversions run on several
//     machines against the same output volume
//   - [NullCache]: never stores anything
package cache

import (
	"context"
	"os"
	"time"
)

// Cache is a key/value store with optional expiration.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// TTLConversion is how long a conversion manifest is trusted.
const TTLConversion = 30 * 24 * time.Hour

// Fingerprint identifies the content of an input file without reading it.
type Fingerprint struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// FingerprintFile stats path.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Path: path, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// ConversionKeyOpts lists the options that affect the bytes of a conversion.
// Window size, memory budget and mode are absent on purpose: both converters
// write identical files for any window.
type ConversionKeyOpts struct {
	Format      string `json:"format"`
	Directed    bool   `json:"directed"`
	Weighted    bool   `json:"weighted"`
	HeaderLines int    `json:"header_lines"`
	Comment     string `json:"comment"`
	Delimiter   rune   `json:"delimiter"`
	IDMode      string `json:"id_mode"`
	Base        int64  `json:"base"`
	Encoding    string `json:"encoding"`
	AddWeights  bool   `json:"add_weights"`
	MaxWeight   int64  `json:"max_weight"`
	Seed        uint64 `json:"seed"`
	Output      string `json:"output"`
}

// Keyer builds cache keys.
type Keyer interface {
	ConversionKey(fp Fingerprint, opts ConversionKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ConversionKey returns "conversion:<sha256>".
func (DefaultKeyer) ConversionKey(fp Fingerprint, opts ConversionKeyOpts) string {
	return hashKey("conversion", fp, opts)
}
