package source

import (
	"bufio"
	"context"
	"iter"
	"os"
	"strconv"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// Ligra header keywords.
const (
	ligraUnweighted = "AdjacencyGraph"
	ligraWeighted   = "WeightedAdjacencyGraph"
)

// Ligra reads the adjacency files written by the Ligra graph utilities
// (rMatGraph, SNAPtoAdj). The layout is one value per line:
//
//	AdjacencyGraph | WeightedAdjacencyGraph
//	n
//	m
//	offsets[0..n)
//	targets[0..m)
//	weights[0..m)   (weighted only)
//
// Ids are already dense and zero-based, and the node count comes from the
// header so trailing isolated nodes are preserved.
type Ligra struct {
	opts     Options
	weighted bool
	n, m     int64
}

// NewLigra creates a Ligra adapter. Unlike the line-oriented adapters it reads
// the three header values immediately, because they decide Weighted and
// NodeCount.
func NewLigra(opts Options) (*Ligra, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", opts.Path)
	}
	defer f.Close()

	t := newTokens(opts.Path, f)
	kind, ok := t.next()
	if !ok {
		return nil, t.fail("missing header")
	}
	s := &Ligra{opts: opts}
	switch kind {
	case ligraUnweighted:
	case ligraWeighted:
		s.weighted = true
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedFormat, "%s: not a Ligra adjacency file (header %q)", opts.Path, kind)
	}
	if s.n, err = t.nextInt(); err != nil {
		return nil, err
	}
	if s.m, err = t.nextInt(); err != nil {
		return nil, err
	}
	if s.n < 0 || s.m < 0 {
		return nil, t.fail("negative node or edge count")
	}
	return s, nil
}

func (s *Ligra) Name() string     { return s.opts.name() }
func (s *Ligra) Directed() bool   { return s.opts.Directed }
func (s *Ligra) Weighted() bool   { return s.weighted }
func (s *Ligra) NodeCount() int64 { return s.n }
func (s *Ligra) EdgeCount() int64 { return s.m }

// Edges streams the adjacency using one reader per file section, so memory
// stays constant regardless of graph size.
func (s *Ligra) Edges(ctx context.Context) iter.Seq2[RawEdge, error] {
	return func(yield func(RawEdge, error) bool) {
		offs, err := s.section(3)
		if err != nil {
			yield(RawEdge{}, err)
			return
		}
		defer offs.close()
		targets, err := s.section(3 + s.n)
		if err != nil {
			yield(RawEdge{}, err)
			return
		}
		defer targets.close()
		var weights *tokens
		if s.weighted {
			if weights, err = s.section(3 + s.n + s.m); err != nil {
				yield(RawEdge{}, err)
				return
			}
			defer weights.close()
		}

		var start int64
		if s.n > 0 {
			if start, err = offs.nextInt(); err != nil {
				yield(RawEdge{}, err)
				return
			}
			if start != 0 {
				yield(RawEdge{}, offs.fail("first offset must be 0"))
				return
			}
		}
		var emitted int64
		for u := int64(0); u < s.n; u++ {
			end := s.m
			if u+1 < s.n {
				if end, err = offs.nextInt(); err != nil {
					yield(RawEdge{}, err)
					return
				}
			}
			if end < start || end > s.m {
				yield(RawEdge{}, offs.fail("offsets are not monotone"))
				return
			}
			for ; emitted < end; emitted++ {
				if emitted%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						yield(RawEdge{}, err)
						return
					}
				}
				v, err := targets.nextInt()
				if err != nil {
					yield(RawEdge{}, err)
					return
				}
				if v < 0 || v >= s.n {
					yield(RawEdge{}, targets.fail("target out of range"))
					return
				}
				e := RawEdge{From: u, To: v}
				if weights != nil {
					if e.Weight, err = weights.nextInt(); err != nil {
						yield(RawEdge{}, err)
						return
					}
				}
				if !yield(e, nil) {
					return
				}
			}
			start = end
		}
	}
}

// section opens the file and skips the first skip values.
func (s *Ligra) section(skip int64) (*tokens, error) {
	f, err := os.Open(s.opts.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", s.opts.Path)
	}
	t := newTokens(s.opts.Path, f)
	for i := int64(0); i < skip; i++ {
		if _, ok := t.next(); !ok {
			f.Close()
			return nil, t.fail("file ends before section")
		}
	}
	return t, nil
}

// tokens reads whitespace separated values and remembers their position.
type tokens struct {
	path string
	f    *os.File
	sc   *bufio.Scanner
	pos  int // values consumed; equals the line number for one value per line
	last string
}

func newTokens(path string, f *os.File) *tokens {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	sc.Split(bufio.ScanWords)
	return &tokens{path: path, f: f, sc: sc}
}

func (t *tokens) next() (string, bool) {
	if !t.sc.Scan() {
		return "", false
	}
	t.pos++
	t.last = t.sc.Text()
	return t.last, true
}

func (t *tokens) nextInt() (int64, error) {
	tok, ok := t.next()
	if !ok {
		if err := t.sc.Err(); err != nil {
			return 0, errors.Wrap(errors.ErrCodeIO, err, "read %s", t.path)
		}
		return 0, t.fail("unexpected end of file")
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, t.fail("not an integer")
	}
	return v, nil
}

func (t *tokens) fail(reason string) error {
	return &errors.MalformedInputError{Path: t.path, LineNo: t.pos, Line: t.last, Reason: reason}
}

func (t *tokens) close() { t.f.Close() }

var (
	_ Source = (*Ligra)(nil)
	_ Sized  = (*Ligra)(nil)
)
