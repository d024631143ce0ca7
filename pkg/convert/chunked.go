package convert

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

// Chunked converts src with bounded memory. Besides the id mapping it holds
// one degree and one offset array of n entries, plus the records of a single
// window.
//
// Each side takes 1 + ceil(n/W) scans of the source for fixed windows. A
// record emitted for a node beyond its counted degree, or a node left short
// of it, fails the job with an InconsistentDegreeError: the source changed
// between scans or an adapter is not restartable.
func Chunked(ctx context.Context, src source.Source, m remap.Mapper, enc csr.Encoder, opts Options) (*Stats, error) {
	opts.setDefaults(src)
	c := &chunked{
		ctx:      ctx,
		src:      src,
		m:        m,
		enc:      enc,
		opts:     &opts,
		n:        m.Len(),
		directed: src.Directed(),
		weighted: src.Weighted(),
		stats:    &Stats{Nodes: int64(m.Len())},
	}
	start := time.Now()

	sides := []string{SideForward}
	if c.directed {
		sides = append(sides, SideReverse)
	}
	for _, side := range sides {
		if err := c.side(side); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		// Buffered bytes belong to the last pass that wrote.
		l := c.last
		return nil, writeErr(c.opts, l.side, l.num, int64(l.w.lo), int64(l.w.hi), err)
	}
	c.stats.Bytes = enc.Written()
	c.stats.Duration = time.Since(start)
	opts.Logger.Info("wrote csr", "dataset", opts.Dataset, "bytes", c.stats.Bytes,
		"passes", c.stats.Passes, "duration", c.stats.Duration)
	return c.stats, nil
}

type chunked struct {
	ctx      context.Context
	src      source.Source
	m        remap.Mapper
	enc      csr.Encoder
	opts     *Options
	n        int
	directed bool
	weighted bool
	stats    *Stats
	last     stage // last pass that wrote output
}

type stage struct {
	side string
	num  int
	w    window
}

// side writes the offsets and records of one side.
func (c *chunked) side(side string) error {
	log := c.opts.Logger.With("dataset", c.opts.Dataset, "side", side)

	// Pass 1: degrees.
	deg := make([]int64, c.n)
	start := time.Now()
	err := pass(c.ctx, c.opts, side, 1, 0, 0, func() (int64, error) {
		return scan(c.ctx, c.src, c.m, func(u, v uint32, _ int64) error {
			o, _ := owner(side, u, v)
			deg[o]++
			if !c.directed {
				deg[v]++
			}
			return nil
		})
	})
	c.stats.Passes++
	if err != nil {
		return err
	}

	offsets := make([]int64, c.n)
	var total int64
	for i, d := range deg {
		offsets[i] = total
		total += d
	}
	switch side {
	case SideForward:
		c.stats.Edges = total
		if err := c.enc.Header(int64(c.n), total); err != nil {
			return writeErr(c.opts, side, 1, 0, 0, err)
		}
	case SideReverse:
		if total != c.stats.Edges {
			return &errors.StageError{Dataset: c.opts.Dataset, Side: side, Pass: 1,
				Err: errors.New(errors.ErrCodeInconsistentDegree,
					"reverse side counted %d records, forward side %d", total, c.stats.Edges)}
		}
	}
	c.last = stage{side: side, num: 1}
	if err := writeOffsets(c.enc, offsets); err != nil {
		return writeErr(c.opts, side, 1, 0, 0, err)
	}
	log.Info("counted degrees", "pass", 1, "nodes", c.n, "edges", total, "duration", time.Since(start))

	// Passes 2..k: windows.
	windows := planWindows(deg, c.opts.WindowSize, c.opts.MemoryBudget, csr.RecordSize(c.weighted))
	log.Debug("planned windows", "windows", len(windows))
	for i, w := range windows {
		num := i + 2
		start := time.Now()
		if err := c.window(side, num, w, offsets, total); err != nil {
			return err
		}
		c.stats.Passes++
		c.stats.Windows++
		log.Debug("wrote window", "pass", num, "window", fmt.Sprintf("[%d,%d)", w.lo, w.hi),
			"duration", time.Since(start))
	}
	return nil
}

// window re-scans the source, buffers the records owned by nodes in [w.lo,
// w.hi) at their final positions, and appends them to the output.
func (c *chunked) window(side string, num int, w window, offsets []int64, total int64) error {
	end := func(i int) int64 {
		if i+1 < c.n {
			return offsets[i+1]
		}
		return total
	}
	base := offsets[w.lo]
	size := end(w.hi-1) - base

	nbrs := make([]uint32, size)
	var weights []int64
	if c.weighted {
		weights = make([]int64, size)
	}
	fill := make([]int64, w.hi-w.lo)
	for i := range fill {
		fill[i] = offsets[w.lo+i] - base
	}

	put := func(o, nbr uint32, wt int64) error {
		if int(o) < w.lo || int(o) >= w.hi {
			return nil
		}
		i := int(o) - w.lo
		pos := fill[i]
		if pos >= end(int(o))-base {
			return &errors.InconsistentDegreeError{Side: side, Node: int64(o),
				Want: end(int(o)) - offsets[o], Got: pos + base - offsets[o] + 1}
		}
		nbrs[pos] = nbr
		if weights != nil {
			weights[pos] = wt
		}
		fill[i]++
		return nil
	}

	err := pass(c.ctx, c.opts, side, num, int64(w.lo), int64(w.hi), func() (int64, error) {
		return scan(c.ctx, c.src, c.m, func(u, v uint32, wt int64) error {
			o, nbr := owner(side, u, v)
			if err := put(o, nbr, wt); err != nil {
				return err
			}
			if !c.directed {
				return put(v, u, wt)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	for i, pos := range fill {
		node := w.lo + i
		if pos != end(node)-base {
			return &errors.StageError{Dataset: c.opts.Dataset, Side: side, Pass: num,
				Lo: int64(w.lo), Hi: int64(w.hi), Err: &errors.InconsistentDegreeError{Side: side,
					Node: int64(node), Want: end(node) - offsets[node], Got: pos + base - offsets[node]}}
		}
	}

	if side == SideReverse {
		sortByOwner(nbrs, weights, offsets[w.lo:w.hi], base, end(w.hi-1))
	}

	c.last = stage{side: side, num: num, w: w}
	for i, nbr := range nbrs {
		r := csr.Record{Neighbor: nbr}
		if weights != nil {
			r.Weight = weights[i]
		}
		if err := c.enc.Record(r); err != nil {
			return writeErr(c.opts, side, num, int64(w.lo), int64(w.hi), err)
		}
	}
	return nil
}

// sortByOwner stably sorts each node's buffered reverse records by neighbor,
// which on the reverse side is the forward owner. Records of the same forward
// owner keep source order, matching csr.Transpose.
func sortByOwner(nbrs []uint32, weights []int64, offsets []int64, base, last int64) {
	var tmp []csr.Record
	for i, off := range offsets {
		lo := off - base
		hi := last - base
		if i+1 < len(offsets) {
			hi = offsets[i+1] - base
		}
		if hi-lo < 2 {
			continue
		}
		if weights == nil {
			slices.Sort(nbrs[lo:hi])
			continue
		}
		tmp = tmp[:0]
		for j := lo; j < hi; j++ {
			tmp = append(tmp, csr.Record{Neighbor: nbrs[j], Weight: weights[j]})
		}
		slices.SortStableFunc(tmp, func(a, b csr.Record) int { return cmp.Compare(a.Neighbor, b.Neighbor) })
		for j, r := range tmp {
			nbrs[lo+int64(j)] = r.Neighbor
			weights[lo+int64(j)] = r.Weight
		}
	}
}

type window struct{ lo, hi int }

// planWindows partitions [0, n) into consecutive windows. A positive size
// gives fixed-width windows. Otherwise a positive budget packs as many nodes
// as fit, counting each node's records plus its fill cursor, and never fewer
// than one node. With neither, the whole graph is one window.
func planWindows(deg []int64, size int, budget, recordSize int64) []window {
	n := len(deg)
	if n == 0 {
		return nil
	}
	var ws []window
	switch {
	case size > 0:
		for lo := 0; lo < n; lo += size {
			ws = append(ws, window{lo, min(lo+size, n)})
		}
	case budget > 0:
		lo := 0
		var used int64
		for i, d := range deg {
			cost := d*recordSize + 8
			if i > lo && used+cost > budget {
				ws = append(ws, window{lo, i})
				lo, used = i, 0
			}
			used += cost
		}
		ws = append(ws, window{lo, n})
	default:
		ws = []window{{0, n}}
	}
	return ws
}
