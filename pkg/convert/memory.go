package convert

import (
	"context"
	"time"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

// Build materializes the CSR graph of src in memory. The source is scanned
// once.
func Build(ctx context.Context, src source.Source, m remap.Mapper, opts Options) (*csr.Graph, error) {
	opts.setDefaults(src)
	lists := make([][]csr.Record, m.Len())
	directed := src.Directed()

	err := pass(ctx, &opts, SideForward, 1, 0, 0, func() (int64, error) {
		return scan(ctx, src, m, func(u, v uint32, w int64) error {
			lists[u] = append(lists[u], csr.Record{Neighbor: v, Weight: w})
			if !directed {
				lists[v] = append(lists[v], csr.Record{Neighbor: u, Weight: w})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	g := &csr.Graph{
		N:        m.Len(),
		Directed: directed,
		Weighted: src.Weighted(),
		Forward:  csr.FromLists(lists),
	}
	if directed {
		g.Reverse = csr.Transpose(g.Forward)
	}
	return g, nil
}

// Memory converts src by building the whole graph in memory and writing it to
// enc.
func Memory(ctx context.Context, src source.Source, m remap.Mapper, enc csr.Encoder, opts Options) (*Stats, error) {
	opts.setDefaults(src)
	start := time.Now()

	g, err := Build(ctx, src, m, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("built adjacency", "dataset", opts.Dataset, "nodes", g.N, "edges", g.M())

	if err := csr.Write(enc, g); err != nil {
		return nil, writeErr(&opts, SideForward, 1, 0, 0, err)
	}
	stats := &Stats{
		Nodes:    int64(g.N),
		Edges:    g.M(),
		Passes:   1,
		Bytes:    enc.Written(),
		Duration: time.Since(start),
	}
	opts.Logger.Info("wrote csr", "dataset", opts.Dataset, "bytes", stats.Bytes, "duration", stats.Duration)
	return stats, nil
}
