package remap

import (
	"context"
	"testing"

	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/source"
)

type sizedSource struct {
	*source.Memory
	n int64
}

func (s sizedSource) NodeCount() int64 { return s.n }

func TestBuildDense(t *testing.T) {
	tests := []struct {
		name  string
		edges []source.RawEdge
		base  int64
		wantN int
	}{
		{"zero based", []source.RawEdge{{From: 0, To: 1}, {From: 1, To: 4}}, 0, 5},
		{"one based", []source.RawEdge{{From: 1, To: 2}, {From: 3, To: 2}}, 1, 3},
		{"empty", nil, 0, 0},
		{"self loop only", []source.RawEdge{{From: 2, To: 2}}, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source.NewMemory("g", false, false, tt.edges)
			m, err := Build(context.Background(), src, ModeDense, tt.base)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if m.Len() != tt.wantN {
				t.Errorf("Len() = %d, want %d", m.Len(), tt.wantN)
			}
			for _, e := range tt.edges {
				i, ok := m.Index(e.From)
				if !ok || int64(i) != e.From-tt.base {
					t.Errorf("Index(%d) = %d, %v", e.From, i, ok)
				}
			}
		})
	}
}

func TestBuildDenseBelowBase(t *testing.T) {
	src := source.NewMemory("g", false, false, []source.RawEdge{{From: 0, To: 1}})
	_, err := Build(context.Background(), src, ModeDense, 1)
	if !errors.Is(err, errors.ErrCodeMalformedInput) {
		t.Errorf("Build() error = %v, want MALFORMED_INPUT", err)
	}
}

func TestBuildDenseSized(t *testing.T) {
	src := sizedSource{source.NewMemory("g", true, false, []source.RawEdge{{From: 0, To: 1}}), 10}
	m, err := Build(context.Background(), src, ModeDense, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if m.Len() != 10 {
		t.Errorf("Len() = %d, want 10 from header", m.Len())
	}
	if _, ok := m.Index(10); ok {
		t.Error("Index(10) should be out of range")
	}
}

func TestBuildSparse(t *testing.T) {
	edges := []source.RawEdge{
		{From: 1000, To: 7},
		{From: 7, To: 42},
		{From: 42, To: 1000},
		{From: 1000, To: 42},
	}
	src := source.NewMemory("g", true, false, edges)
	m, err := Build(context.Background(), src, ModeSparse, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	want := map[int64]uint32{7: 0, 42: 1, 1000: 2}
	for raw, idx := range want {
		got, ok := m.Index(raw)
		if !ok || got != idx {
			t.Errorf("Index(%d) = %d, %v; want %d", raw, got, ok, idx)
		}
	}
	if _, ok := m.Index(8); ok {
		t.Error("Index(8) should not be found")
	}

	tbl := m.(*Table)
	for raw, idx := range want {
		if tbl.Raw(idx) != raw {
			t.Errorf("Raw(%d) = %d, want %d", idx, tbl.Raw(idx), raw)
		}
	}
}

func TestBuildSparseOrderIndependent(t *testing.T) {
	a := source.NewMemory("a", false, false, []source.RawEdge{{From: 5, To: 3}, {From: 9, To: 5}})
	b := source.NewMemory("b", false, false, []source.RawEdge{{From: 9, To: 5}, {From: 3, To: 5}})

	ma, err := Build(context.Background(), a, ModeSparse, 0)
	if err != nil {
		t.Fatal(err)
	}
	mb, err := Build(context.Background(), b, ModeSparse, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range []int64{3, 5, 9} {
		ia, _ := ma.Index(raw)
		ib, _ := mb.Index(raw)
		if ia != ib {
			t.Errorf("Index(%d) differs: %d vs %d", raw, ia, ib)
		}
	}
}

func TestBuildPropagatesSourceError(t *testing.T) {
	src := source.NewEdgeList(source.Options{Path: "/nonexistent/edges.txt"})
	for _, mode := range []Mode{ModeDense, ModeSparse} {
		if _, err := Build(context.Background(), src, mode, 0); !errors.Is(err, errors.ErrCodeIO) {
			t.Errorf("Build(%s) error = %v, want IO_ERROR", mode, err)
		}
	}
}

func TestBuildUnknownMode(t *testing.T) {
	src := source.NewMemory("g", false, false, nil)
	if _, err := Build(context.Background(), src, "hashed", 0); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Build() error = %v, want INVALID_INPUT", err)
	}
}

func TestNewTable(t *testing.T) {
	tbl, err := NewTable([]int64{30, 10, 20, 10})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if i, ok := tbl.Index(20); !ok || i != 1 {
		t.Errorf("Index(20) = %d, %v", i, ok)
	}
}
