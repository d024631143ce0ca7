package csr

import (
	"math/rand/v2"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// DefaultMaxWeight is the largest weight AddWeights assigns by default.
const DefaultMaxWeight = 10

// WeightOptions configures AddWeights.
type WeightOptions struct {
	Directed bool
	Max      int64  // weights are drawn from [0, Max]; 0 means DefaultMaxWeight
	Seed     uint64 // same seed, same weights
}

// AddWeights streams an unweighted CSR file from dec to a weighted one on enc,
// attaching a uniform random weight to every record. Offsets are copied
// unchanged.
//
// A weight is a function of the edge, not of its position: the k-th record
// (u -> v) of u's list and the matching record in v's reverse (or, for
// undirected graphs, forward) list receive the same weight. The output
// therefore still passes Validate. Memory is one offsets array plus the
// occurrence counts of a single node's list.
func AddWeights(dec Decoder, enc Encoder, opts WeightOptions) error {
	if opts.Max == 0 {
		opts.Max = DefaultMaxWeight
	}
	if opts.Max < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max weight %d is negative", opts.Max)
	}

	n, m, err := dec.Header()
	if err != nil {
		return err
	}
	if err := checkHeader(n, m); err != nil {
		return err
	}
	if err := enc.Header(n, m); err != nil {
		return err
	}

	w := &weigher{opts: opts, pcg: rand.NewPCG(0, 0), seen: make(map[uint32]uint64)}
	w.rng = rand.New(w.pcg)
	offsets, err := w.side(dec, enc, nil, n, m, false)
	if err != nil {
		return err
	}
	if opts.Directed {
		if _, err := w.side(dec, enc, offsets[:0], n, m, true); err != nil {
			return err
		}
	}
	if err := dec.End(); err != nil {
		return err
	}
	return enc.Flush()
}

type weigher struct {
	opts WeightOptions
	pcg  *rand.PCG
	rng  *rand.Rand
	seen map[uint32]uint64
}

// side copies one side's offsets and weighted records. It returns the
// offsets, read into buf.
func (w *weigher) side(dec Decoder, enc Encoder, buf []int64, n, m int64, reverse bool) ([]int64, error) {
	offsets, err := readOffsets(dec, buf, n)
	if err != nil {
		return nil, err
	}
	for _, off := range offsets {
		if err := enc.Offset(off); err != nil {
			return nil, err
		}
	}

	owner := -1
	next := int64(0) // flat position where the next owner's list starts
	for pos := int64(0); pos < m; pos++ {
		for pos == next {
			owner++
			clear(w.seen)
			next = m
			if owner+1 < len(offsets) {
				next = offsets[owner+1]
			}
			if next < pos {
				return nil, errors.New(errors.ErrCodeMalformedInput, "csr: offsets[%d] = %d out of order", owner+1, next)
			}
		}
		r, err := dec.Record()
		if err != nil {
			return nil, err
		}
		r.Weight = w.weight(uint32(owner), r.Neighbor, reverse)
		if err := enc.Record(r); err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

// weight draws the weight of the next occurrence of owner -> nbr.
func (w *weigher) weight(owner, nbr uint32, reverse bool) int64 {
	k := w.seen[nbr]
	w.seen[nbr]++

	from, to := owner, nbr
	switch {
	case w.opts.Directed && reverse:
		from, to = nbr, owner
	case !w.opts.Directed && from > to:
		from, to = to, from
	case !w.opts.Directed && from == to:
		// An undirected self-loop is stored twice in the same list.
		k /= 2
	}
	w.pcg.Seed(w.opts.Seed^(k*0x9e3779b97f4a7c15), uint64(from)<<32|uint64(to))
	return w.rng.Int64N(w.opts.Max + 1)
}
