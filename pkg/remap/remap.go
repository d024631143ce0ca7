// Package remap maps raw dataset ids to dense node indices.
//
// Every CSR file addresses nodes by a dense index in [0, n). Raw datasets
// either already use dense ids (possibly 1-based) or use arbitrary ids such as
// account numbers. A [Mapper] hides the difference from the converters:
//
//   - [Dense] subtracts a base and trusts the ids to be dense.
//   - [Table] assigns indices in ascending raw-id order from a sorted table
//     built in a dedicated scan (Pass 0).
//
// Both are immutable after [Build] returns and safe for concurrent lookups.
package remap

import (
	"context"
	"fmt"
	"math"

	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/source"
)

// MaxNodes is the largest node count a CSR neighbor field can address.
const MaxNodes = math.MaxUint32

// Mapper translates raw ids into dense indices.
type Mapper interface {
	// Index returns the dense index of raw, or false when raw was never seen
	// (Table) or falls outside [Base, Base+n) (Dense).
	Index(raw int64) (uint32, bool)

	// Len returns the number of dense nodes n.
	Len() int
}

// Mode selects how Build derives the mapping.
type Mode string

const (
	// ModeDense uses raw ids directly after subtracting the base.
	ModeDense Mode = "dense"
	// ModeSparse builds a sorted table of the distinct raw ids.
	ModeSparse Mode = "sparse"
)

// Build scans src once (Pass 0) and returns its mapper.
//
// In dense mode the node count is the header count when src implements
// [source.Sized], otherwise max(raw id) - base + 1; isolated trailing nodes
// are therefore only kept by sized sources. Ids below base are rejected.
//
// In sparse mode the node count is the number of distinct ids, and indices
// follow ascending raw-id order so the output is independent of edge order.
func Build(ctx context.Context, src source.Source, mode Mode, base int64) (Mapper, error) {
	switch mode {
	case ModeSparse:
		return buildTable(ctx, src)
	case ModeDense, "":
		if sz, ok := src.(source.Sized); ok {
			return newDense(base, sz.NodeCount())
		}
		return buildDense(ctx, src, base)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown id mode %q", mode)
	}
}

// Dense maps raw id r to r - Base.
type Dense struct {
	Base int64
	N    int
}

func newDense(base, n int64) (*Dense, error) {
	if n > MaxNodes {
		return nil, tooMany(n)
	}
	return &Dense{Base: base, N: int(n)}, nil
}

func buildDense(ctx context.Context, src source.Source, base int64) (*Dense, error) {
	maxID := int64(-1)
	for e, err := range src.Edges(ctx) {
		if err != nil {
			return nil, err
		}
		for _, id := range [2]int64{e.From, e.To} {
			if id < base {
				return nil, errors.New(errors.ErrCodeMalformedInput,
					"id %d is below the base %d of a dense dataset", id, base)
			}
			maxID = max(maxID, id)
		}
	}
	if maxID < 0 {
		return &Dense{Base: base}, nil
	}
	return newDense(base, maxID-base+1)
}

// Index implements Mapper.
func (d *Dense) Index(raw int64) (uint32, bool) {
	i := raw - d.Base
	if i < 0 || i >= int64(d.N) {
		return 0, false
	}
	return uint32(i), true
}

// Len implements Mapper.
func (d *Dense) Len() int { return d.N }

func tooMany(n int64) error {
	return errors.New(errors.ErrCodeInvalidInput,
		"%d nodes exceed the %d addressable by a CSR neighbor field", n, int64(MaxNodes))
}

func (d *Dense) String() string { return fmt.Sprintf("dense(base=%d, n=%d)", d.Base, d.N) }
