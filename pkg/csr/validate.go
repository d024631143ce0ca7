package csr

import (
	"cmp"
	"slices"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// Validate checks the structural invariants of g:
//
//   - offsets start at 0, never decrease and never pass m
//   - every neighbor index is below n
//   - directed graphs: the reverse side holds exactly the transposed records
//     of the forward side, with multiplicity
//   - undirected graphs: every record (u, v, w) is matched by a record (v, u, w)
//
// Reverse lists may be in any order; only the per-node multiset is compared.
func Validate(g *Graph) error {
	if err := validateSide("forward", g.Forward, g.N); err != nil {
		return err
	}
	if !g.Directed {
		return validateSymmetric(g)
	}
	if len(g.Reverse.Records) != len(g.Forward.Records) {
		return invalid("reverse side has %d records, forward has %d", len(g.Reverse.Records), len(g.Forward.Records))
	}
	if err := validateSide("reverse", g.Reverse, g.N); err != nil {
		return err
	}

	want := Transpose(g.Forward)
	var a, b []Record
	for v := range g.N {
		if want.Degree(v) != g.Reverse.Degree(v) {
			return invalid("reverse degree of node %d is %d, forward in-degree is %d",
				v, g.Reverse.Degree(v), want.Degree(v))
		}
		a = append(a[:0], want.Neighbors(v)...)
		b = append(b[:0], g.Reverse.Neighbors(v)...)
		slices.SortFunc(a, compareRecords)
		slices.SortFunc(b, compareRecords)
		if !slices.Equal(a, b) {
			return invalid("reverse list of node %d is not the transpose of the forward side", v)
		}
	}
	return nil
}

func validateSide(side string, a Adjacency, n int) error {
	if len(a.Offsets) != n {
		return invalid("%s side has %d offsets, want %d", side, len(a.Offsets), n)
	}
	m := int64(len(a.Records))
	prev := int64(0)
	for i, off := range a.Offsets {
		if i == 0 && off != 0 {
			return invalid("%s offsets[0] = %d, want 0", side, off)
		}
		if off < prev || off > m {
			return invalid("%s offsets[%d] = %d out of order (previous %d, m %d)", side, i, off, prev, m)
		}
		prev = off
	}
	for i, r := range a.Records {
		if int(r.Neighbor) >= n {
			return invalid("%s record %d: neighbor %d >= n %d", side, i, r.Neighbor, n)
		}
	}
	return nil
}

type arc struct {
	from, to uint32
	weight   int64
}

func validateSymmetric(g *Graph) error {
	count := make(map[arc]int)
	for u := range g.N {
		for _, r := range g.Forward.Neighbors(u) {
			count[arc{uint32(u), r.Neighbor, r.Weight}]++
		}
	}
	for a, c := range count {
		if back := count[arc{a.to, a.from, a.weight}]; back != c {
			return invalid("undirected graph is not symmetric: %d->%d appears %d times, %d->%d %d times",
				a.from, a.to, c, a.to, a.from, back)
		}
	}
	return nil
}

func compareRecords(a, b Record) int {
	if c := cmp.Compare(a.Neighbor, b.Neighbor); c != 0 {
		return c
	}
	return cmp.Compare(a.Weight, b.Weight)
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeMalformedInput, "csr: "+format, args...)
}
