package remap

import (
	"context"
	"fmt"
	"slices"

	"github.com/tidwall/btree"

	"github.com/matzehuels/csrconv/pkg/source"
)

// Table maps the distinct raw ids of a dataset to their rank in ascending
// order. Lookups are binary searches over a flat sorted slice.
type Table struct {
	ids []int64
}

// NewTable builds a table from raw ids in any order. Duplicates are folded.
func NewTable(ids []int64) (*Table, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if int64(len(sorted)) > MaxNodes {
		return nil, tooMany(int64(len(sorted)))
	}
	return &Table{ids: sorted}, nil
}

// buildTable collects the distinct ids of src. The ordered set absorbs the
// many repeats of high-degree ids without growing, and is then flattened so
// lookups during the later passes touch one contiguous slice.
func buildTable(ctx context.Context, src source.Source) (*Table, error) {
	seen := btree.NewBTreeGOptions[int64](func(a, b int64) bool { return a < b },
		btree.Options{NoLocks: true})
	for e, err := range src.Edges(ctx) {
		if err != nil {
			return nil, err
		}
		seen.Set(e.From)
		seen.Set(e.To)
	}
	if int64(seen.Len()) > MaxNodes {
		return nil, tooMany(int64(seen.Len()))
	}

	ids := make([]int64, 0, seen.Len())
	seen.Scan(func(id int64) bool {
		ids = append(ids, id)
		return true
	})
	return &Table{ids: ids}, nil
}

// Index implements Mapper.
func (t *Table) Index(raw int64) (uint32, bool) {
	i, ok := slices.BinarySearch(t.ids, raw)
	return uint32(i), ok
}

// Len implements Mapper.
func (t *Table) Len() int { return len(t.ids) }

// Raw returns the raw id of dense index i.
func (t *Table) Raw(i uint32) int64 { return t.ids[i] }

// IDs returns the distinct raw ids in dense-index order. The slice must not be
// modified.
func (t *Table) IDs() []int64 { return t.ids }

func (t *Table) String() string { return fmt.Sprintf("table(n=%d)", len(t.ids)) }
