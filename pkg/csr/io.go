package csr

import (
	"bufio"
	"os"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// Write encodes g and flushes the encoder.
func Write(enc Encoder, g *Graph) error {
	if err := enc.Header(int64(g.N), g.M()); err != nil {
		return err
	}
	if err := writeSide(enc, g.Forward); err != nil {
		return err
	}
	if g.Directed {
		if err := writeSide(enc, g.Reverse); err != nil {
			return err
		}
	}
	return enc.Flush()
}

func writeSide(enc Encoder, a Adjacency) error {
	for _, off := range a.Offsets {
		if err := enc.Offset(off); err != nil {
			return err
		}
	}
	for _, r := range a.Records {
		if err := enc.Record(r); err != nil {
			return err
		}
	}
	return nil
}

// Read decodes a whole CSR graph. The layout is not validated beyond what is
// needed to parse it; see Validate.
func Read(dec Decoder, directed, weighted bool) (*Graph, error) {
	n, m, err := dec.Header()
	if err != nil {
		return nil, err
	}
	if err := checkHeader(n, m); err != nil {
		return nil, err
	}
	g := &Graph{N: int(n), Directed: directed, Weighted: weighted}
	if g.Forward, err = readSide(dec, n, m); err != nil {
		return nil, err
	}
	if directed {
		if g.Reverse, err = readSide(dec, n, m); err != nil {
			return nil, err
		}
	}
	if err := dec.End(); err != nil {
		return nil, err
	}
	return g, nil
}

// maxPrealloc caps the capacity taken from header counts. Slices grow as
// values arrive, so a corrupt header fails at end of file instead of
// allocating its claimed size up front.
const maxPrealloc = 1 << 16

func checkHeader(n, m int64) error {
	if n < 0 || m < 0 || n > maxNeighbor+1 {
		return errors.New(errors.ErrCodeMalformedInput, "csr: invalid header n=%d m=%d", n, m)
	}
	return nil
}

func readOffsets(dec Decoder, dst []int64, n int64) ([]int64, error) {
	if dst == nil {
		dst = make([]int64, 0, min(n, maxPrealloc))
	}
	for i := int64(0); i < n; i++ {
		off, err := dec.Offset()
		if err != nil {
			return nil, err
		}
		dst = append(dst, off)
	}
	return dst, nil
}

func readSide(dec Decoder, n, m int64) (Adjacency, error) {
	offsets, err := readOffsets(dec, nil, n)
	if err != nil {
		return Adjacency{}, err
	}
	a := Adjacency{Offsets: offsets, Records: make([]Record, 0, min(m, maxPrealloc))}
	for i := int64(0); i < m; i++ {
		r, err := dec.Record()
		if err != nil {
			return Adjacency{}, err
		}
		a.Records = append(a.Records, r)
	}
	return a, nil
}

// ReadFile reads the CSR graph stored at path.
func ReadFile(path string, enc Encoding, directed, weighted bool) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()
	return Read(NewDecoder(bufio.NewReader(f), enc, weighted), directed, weighted)
}
