package source

import (
	"context"
	"iter"
)

// Memory is a Source over an in-memory edge slice, used for generated graphs
// and tests.
type Memory struct {
	name     string
	directed bool
	weighted bool
	edges    []RawEdge
}

// NewMemory creates a Source that replays edges on every pass.
func NewMemory(name string, directed, weighted bool, edges []RawEdge) *Memory {
	return &Memory{name: name, directed: directed, weighted: weighted, edges: edges}
}

func (s *Memory) Name() string   { return s.name }
func (s *Memory) Directed() bool { return s.directed }
func (s *Memory) Weighted() bool { return s.weighted }

// Edges replays the edge slice.
func (s *Memory) Edges(ctx context.Context) iter.Seq2[RawEdge, error] {
	return func(yield func(RawEdge, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(RawEdge{}, err)
			return
		}
		for _, e := range s.edges {
			if !yield(e, nil) {
				return
			}
		}
	}
}

var _ Source = (*Memory)(nil)
