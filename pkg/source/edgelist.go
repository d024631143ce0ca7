package source

import (
	"context"
	"iter"
	"strings"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// EdgeList reads one edge per line: "from to" or "from to weight".
type EdgeList struct {
	opts Options
}

// NewEdgeList creates an edge-list adapter. The file is not opened until
// Edges is called.
func NewEdgeList(opts Options) *EdgeList {
	return &EdgeList{opts: opts}
}

func (s *EdgeList) Name() string   { return s.opts.name() }
func (s *EdgeList) Directed() bool { return s.opts.Directed }
func (s *EdgeList) Weighted() bool { return s.opts.Weighted }

// Edges returns a fresh pass over the edge list.
func (s *EdgeList) Edges(ctx context.Context) iter.Seq2[RawEdge, error] {
	return func(yield func(RawEdge, error) bool) {
		f, sc, lineNo, err := openLines(s.opts.Path, s.opts.HeaderLines)
		if err != nil {
			yield(RawEdge{}, err)
			return
		}
		defer f.Close()

		var fields []string
		for sc.Scan() {
			lineNo++
			if lineNo%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					yield(RawEdge{}, err)
					return
				}
			}

			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if s.opts.Comment != "" && strings.HasPrefix(line, s.opts.Comment) {
				continue
			}

			fields = splitFields(fields, line, s.opts.Delimiter)
			e, reason := parseRow(fields, s.opts.Weighted)
			if reason != "" {
				yield(RawEdge{}, &errors.MalformedInputError{
					Path:   s.opts.Path,
					LineNo: lineNo,
					Line:   line,
					Reason: reason,
				})
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(RawEdge{}, errors.Wrap(errors.ErrCodeIO, err, "read %s", s.opts.Path))
		}
	}
}

var _ Source = (*EdgeList)(nil)
