package source

import (
	"bufio"
	"context"
	"iter"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// RawEdge is a single edge as it appears in the raw dataset.
// From and To are the dataset's own ids, which are not necessarily dense or
// zero-based. Weight is zero for unweighted sources.
type RawEdge struct {
	From   int64
	To     int64
	Weight int64
}

// Source produces the edges of one raw dataset.
type Source interface {
	// Name identifies the dataset in logs and errors.
	Name() string

	// Directed reports whether edges are one-way.
	Directed() bool

	// Weighted reports whether edges carry a weight.
	Weighted() bool

	// Edges returns a fresh pass over the dataset. Iteration stops after the
	// first non-nil error.
	Edges(ctx context.Context) iter.Seq2[RawEdge, error]
}

// Sized is implemented by sources whose file header declares the node count.
type Sized interface {
	NodeCount() int64
}

// Options configures a format adapter.
type Options struct {
	Path string // raw dataset file
	Name string // dataset name, defaults to the base name of Path

	Directed bool
	Weighted bool // a weight column follows the two id columns

	HeaderLines int    // lines skipped at the start of every pass
	Comment     string // lines starting with this prefix are skipped; empty disables
	Delimiter   rune   // column separator; 0 splits on any run of whitespace
}

func (o Options) name() string {
	if o.Name != "" {
		return o.Name
	}
	return baseName(o.Path)
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ctxCheckEvery is how many lines are read between context checks.
const ctxCheckEvery = 1 << 16

// maxLineSize bounds a single raw line.
const maxLineSize = 1 << 20

// openLines opens path and returns a scanner positioned after skip lines,
// along with the number of lines consumed.
func openLines(path string, skip int) (*os.File, *bufio.Scanner, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, errors.Wrap(errors.ErrCodeIO, err, "open %s", path)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for lineNo < skip && sc.Scan() {
		lineNo++
	}
	if err := sc.Err(); err != nil {
		f.Close()
		return nil, nil, 0, errors.Wrap(errors.ErrCodeIO, err, "read %s", path)
	}
	return f, sc, lineNo, nil
}

// splitFields splits line into dst using delim, or any whitespace when delim is 0.
// dst is reused between lines to avoid an allocation per row.
func splitFields(dst []string, line string, delim rune) []string {
	dst = dst[:0]
	if delim == 0 {
		start := -1
		for i, r := range line {
			if unicode.IsSpace(r) {
				if start >= 0 {
					dst = append(dst, line[start:i])
					start = -1
				}
			} else if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			dst = append(dst, line[start:])
		}
		return dst
	}
	for {
		i := strings.IndexRune(line, delim)
		if i < 0 {
			return append(dst, strings.TrimSpace(line))
		}
		dst = append(dst, strings.TrimSpace(line[:i]))
		line = line[i+len(string(delim)):]
	}
}

// parseID parses a non-negative node id.
func parseID(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseWeight parses a signed integer weight.
func parseWeight(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// parseRow converts split columns into an edge, validating the column count.
func parseRow(fields []string, weighted bool) (RawEdge, string) {
	want := 2
	if weighted {
		want = 3
	}
	if len(fields) != want {
		return RawEdge{}, "expected " + strconv.Itoa(want) + " columns, got " + strconv.Itoa(len(fields))
	}
	from, ok := parseID(fields[0])
	if !ok {
		return RawEdge{}, "invalid source id"
	}
	to, ok := parseID(fields[1])
	if !ok {
		return RawEdge{}, "invalid target id"
	}
	e := RawEdge{From: from, To: to}
	if weighted {
		w, ok := parseWeight(fields[2])
		if !ok {
			return RawEdge{}, "invalid weight"
		}
		e.Weight = w
	}
	return e, ""
}
