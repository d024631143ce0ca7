package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// CSV reads comma separated rows of the form from,to[,weight[,extra...]].
// Columns after the weight (the rating timestamp in the SNAP signed networks)
// are ignored.
type CSV struct {
	opts Options
}

// NewCSV creates a CSV adapter. The file is not opened until Edges is called.
func NewCSV(opts Options) *CSV {
	return &CSV{opts: opts}
}

func (s *CSV) Name() string   { return s.opts.name() }
func (s *CSV) Directed() bool { return s.opts.Directed }
func (s *CSV) Weighted() bool { return s.opts.Weighted }

// Edges returns a fresh pass over the CSV file.
func (s *CSV) Edges(ctx context.Context) iter.Seq2[RawEdge, error] {
	return func(yield func(RawEdge, error) bool) {
		f, err := os.Open(s.opts.Path)
		if err != nil {
			yield(RawEdge{}, errors.Wrap(errors.ErrCodeIO, err, "open %s", s.opts.Path))
			return
		}
		defer f.Close()

		br := bufio.NewReader(f)
		for i := 0; i < s.opts.HeaderLines; i++ {
			if _, err := br.ReadString('\n'); err != nil {
				if err == io.EOF {
					return
				}
				yield(RawEdge{}, errors.Wrap(errors.ErrCodeIO, err, "read %s", s.opts.Path))
				return
			}
		}

		r := csv.NewReader(br)
		r.FieldsPerRecord = -1
		r.ReuseRecord = true
		r.TrimLeadingSpace = true
		if s.opts.Delimiter != 0 {
			r.Comma = s.opts.Delimiter
		}
		if s.opts.Comment != "" {
			r.Comment = []rune(s.opts.Comment)[0]
		}

		want := 2
		if s.opts.Weighted {
			want = 3
		}

		rows := 0
		for {
			rec, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					lineNo := pe.Line + s.opts.HeaderLines
					yield(RawEdge{}, &errors.MalformedInputError{
						Path:   s.opts.Path,
						LineNo: lineNo,
						Line:   lineAt(s.opts.Path, lineNo),
						Reason: pe.Err.Error(),
					})
					return
				}
				yield(RawEdge{}, errors.Wrap(errors.ErrCodeIO, err, "read %s", s.opts.Path))
				return
			}

			rows++
			if rows%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					yield(RawEdge{}, err)
					return
				}
			}

			var e RawEdge
			reason := ""
			if len(rec) < want {
				reason = "too few columns"
			} else {
				e, reason = parseRow(rec[:want], s.opts.Weighted)
			}
			if reason != "" {
				line, _ := r.FieldPos(0)
				yield(RawEdge{}, &errors.MalformedInputError{
					Path:   s.opts.Path,
					LineNo: line + s.opts.HeaderLines,
					Line:   strings.Join(rec, string(r.Comma)),
					Reason: reason,
				})
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// lineAt re-reads the 1-based line n of path without its line ending, or ""
// if it cannot be read.
func lineAt(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for i := 1; ; i++ {
		line, err := br.ReadString('\n')
		if i == n {
			return strings.TrimRight(line, "\r\n")
		}
		if err != nil {
			return ""
		}
	}
}

var _ Source = (*CSV)(nil)
