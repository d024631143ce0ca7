// Package convert turns an edge source into a CSR file.
//
// Two converters produce byte-identical output for the same source and id
// mapping:
//
//   - [Memory] materializes every neighbor list, then writes them and, for
//     directed graphs, their transpose.
//   - [Chunked] keeps only a dense degree array for the whole graph. For each
//     side it counts degrees (pass 1), writes the offsets, and then re-scans
//     the source once per node window (passes 2..k), buffering only the
//     records owned by nodes inside the window.
//
// # Record order
//
// Forward lists hold records in source order. For undirected graphs every
// edge is added to both endpoints, so a self-loop contributes two records to
// its node. Reverse lists are the transpose of the forward lists: records are
// ordered by the forward owner and, among parallel edges, by source order.
//
// # Usage
//
//	m, err := remap.Build(ctx, src, remap.ModeSparse, 0)
//	enc := csr.NewEncoder(f, csr.Text, src.Weighted())
//	stats, err := convert.Chunked(ctx, src, m, enc, convert.Options{WindowSize: 500000})
package convert

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/observability"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

// Sides of a CSR file.
const (
	SideForward = "forward"
	SideReverse = "reverse"
)

// Options configures a conversion.
type Options struct {
	// Dataset names the job in logs and errors. Defaults to the source name.
	Dataset string

	// WindowSize is the number of nodes whose records are buffered at once by
	// the chunked converter. Zero falls back to MemoryBudget.
	WindowSize int

	// MemoryBudget bounds the buffered records of one window in bytes. Zero
	// with WindowSize zero means a single window.
	MemoryBudget int64

	Logger *log.Logger
}

func (o *Options) setDefaults(src source.Source) {
	if o.Dataset == "" {
		o.Dataset = src.Name()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Stats describes a finished conversion.
type Stats struct {
	Nodes    int64
	Edges    int64 // forward record count m
	Passes   int   // full scans of the source
	Windows  int   // window re-scans, both sides
	Bytes    int64 // encoded output size
	Duration time.Duration
}

// edgeFunc receives one mapped edge.
type edgeFunc func(u, v uint32, w int64) error

// scan streams src once, mapping raw ids to dense indices. It returns the
// number of edges read.
func scan(ctx context.Context, src source.Source, m remap.Mapper, fn edgeFunc) (int64, error) {
	weighted := src.Weighted()
	var count int64
	for e, err := range src.Edges(ctx) {
		if err != nil {
			return count, err
		}
		count++
		u, ok := m.Index(e.From)
		if !ok {
			return count, unmapped(count, e.From)
		}
		v, ok := m.Index(e.To)
		if !ok {
			return count, unmapped(count, e.To)
		}
		w := e.Weight
		if !weighted {
			w = 0
		}
		if err := fn(u, v, w); err != nil {
			return count, err
		}
	}
	return count, nil
}

func unmapped(edge int64, id int64) error {
	return errors.New(errors.ErrCodeMalformedInput, "edge %d: id %d is outside the node range", edge, id)
}

// pass runs one full scan as a numbered pass, reporting it to the hooks and
// wrapping failures with the stage.
func pass(ctx context.Context, opts *Options, side string, num int, lo, hi int64, run func() (int64, error)) error {
	hooks := observability.Convert()
	hooks.OnPassStart(ctx, opts.Dataset, side, num)
	start := time.Now()
	scanned, err := run()
	hooks.OnPassComplete(ctx, opts.Dataset, side, num, scanned, time.Since(start), err)
	if err != nil {
		return &errors.StageError{Dataset: opts.Dataset, Side: side, Pass: num, Lo: lo, Hi: hi, Err: err}
	}
	return nil
}

// writeErr attaches the position in the conversion to an output failure.
func writeErr(opts *Options, side string, num int, lo, hi int64, err error) error {
	return &errors.StageError{Dataset: opts.Dataset, Side: side, Pass: num, Lo: lo, Hi: hi, Err: err}
}

// owner returns the node whose list (u -> v) contributes to, and the neighbor
// recorded there, for the given side.
func owner(side string, u, v uint32) (uint32, uint32) {
	if side == SideReverse {
		return v, u
	}
	return u, v
}

func writeOffsets(enc csr.Encoder, offsets []int64) error {
	for _, off := range offsets {
		if err := enc.Offset(off); err != nil {
			return err
		}
	}
	return nil
}
