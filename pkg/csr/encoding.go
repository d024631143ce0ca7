package csr

import (
	"bufio"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// Encoding selects the byte representation of a CSR file.
type Encoding string

const (
	Text   Encoding = "text"
	Binary Encoding = "binary"
)

// ParseEncoding validates an encoding name. The empty string means Text.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case Text, "":
		return Text, nil
	case Binary:
		return Binary, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown encoding %q (want text or binary)", s)
}

// RecordSize returns the bytes a buffered record occupies: a uint32 neighbor
// plus an int64 weight when weighted. Window budgets are computed with it.
func RecordSize(weighted bool) int64 {
	if weighted {
		return 12
	}
	return 4
}

// Encoder writes the value sequence of a CSR file. Callers are responsible for
// the order: Header, n offsets, m records, and for directed graphs n more
// offsets and m more records.
type Encoder interface {
	Header(n, m int64) error
	Offset(off int64) error
	Record(r Record) error
	// Flush writes buffered data to the underlying writer.
	Flush() error
	// Written returns the bytes produced so far, including buffered bytes.
	Written() int64
}

// NewEncoder returns an encoder for enc writing to w. Weights are written only
// when weighted is set.
func NewEncoder(w io.Writer, enc Encoding, weighted bool) Encoder {
	bw := bufio.NewWriterSize(w, 1<<16)
	if enc == Binary {
		return &binaryEncoder{w: bw, weighted: weighted}
	}
	return &textEncoder{w: bw, weighted: weighted}
}

type textEncoder struct {
	w        *bufio.Writer
	weighted bool
	buf      []byte
	n        int64
}

func (e *textEncoder) line(v int64) error {
	e.buf = strconv.AppendInt(e.buf[:0], v, 10)
	e.buf = append(e.buf, '\n')
	return e.put()
}

func (e *textEncoder) put() error {
	n, err := e.w.Write(e.buf)
	e.n += int64(n)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write csr")
	}
	return nil
}

func (e *textEncoder) Header(n, m int64) error {
	if err := e.line(n); err != nil {
		return err
	}
	return e.line(m)
}

func (e *textEncoder) Offset(off int64) error { return e.line(off) }

func (e *textEncoder) Record(r Record) error {
	if !e.weighted {
		return e.line(int64(r.Neighbor))
	}
	e.buf = strconv.AppendUint(e.buf[:0], uint64(r.Neighbor), 10)
	e.buf = append(e.buf, ' ')
	e.buf = strconv.AppendInt(e.buf, r.Weight, 10)
	e.buf = append(e.buf, '\n')
	return e.put()
}

func (e *textEncoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "flush csr")
	}
	return nil
}

func (e *textEncoder) Written() int64 { return e.n }

type binaryEncoder struct {
	w        *bufio.Writer
	weighted bool
	buf      []byte
	n        int64
}

func (e *binaryEncoder) put() error {
	n, err := e.w.Write(e.buf)
	e.n += int64(n)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write csr")
	}
	return nil
}

func (e *binaryEncoder) Header(n, m int64) error {
	e.buf = binary.LittleEndian.AppendUint64(e.buf[:0], uint64(n))
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(m))
	return e.put()
}

func (e *binaryEncoder) Offset(off int64) error {
	e.buf = binary.LittleEndian.AppendUint64(e.buf[:0], uint64(off))
	return e.put()
}

func (e *binaryEncoder) Record(r Record) error {
	e.buf = binary.LittleEndian.AppendUint32(e.buf[:0], r.Neighbor)
	if e.weighted {
		e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(r.Weight))
	}
	return e.put()
}

func (e *binaryEncoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "flush csr")
	}
	return nil
}

func (e *binaryEncoder) Written() int64 { return e.n }

// Decoder reads the value sequence of a CSR file in the order it was written.
type Decoder interface {
	Header() (n, m int64, err error)
	Offset() (int64, error)
	Record() (Record, error)
	// End returns an error if anything but whitespace follows the last value.
	End() error
}

// NewDecoder returns a decoder for enc reading from r.
func NewDecoder(r io.Reader, enc Encoding, weighted bool) Decoder {
	if enc == Binary {
		return &binaryDecoder{r: bufio.NewReaderSize(r, 1<<16), weighted: weighted}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	return &textDecoder{sc: sc, weighted: weighted}
}

type textDecoder struct {
	sc       *bufio.Scanner
	weighted bool
	pos      int
}

func (d *textDecoder) value() (int64, error) {
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return 0, errors.Wrap(errors.ErrCodeIO, err, "read csr")
		}
		return 0, errors.New(errors.ErrCodeMalformedInput, "csr: unexpected end of file after %d values", d.pos)
	}
	d.pos++
	v, err := strconv.ParseInt(d.sc.Text(), 10, 64)
	if err != nil {
		return 0, errors.New(errors.ErrCodeMalformedInput, "csr: value %d: %q is not an integer", d.pos, d.sc.Text())
	}
	return v, nil
}

func (d *textDecoder) Header() (int64, int64, error) {
	n, err := d.value()
	if err != nil {
		return 0, 0, err
	}
	m, err := d.value()
	if err != nil {
		return 0, 0, err
	}
	return n, m, nil
}

func (d *textDecoder) Offset() (int64, error) { return d.value() }

func (d *textDecoder) Record() (Record, error) {
	v, err := d.value()
	if err != nil {
		return Record{}, err
	}
	if v < 0 || v > maxNeighbor {
		return Record{}, errors.New(errors.ErrCodeMalformedInput, "csr: value %d: neighbor %d out of range", d.pos, v)
	}
	r := Record{Neighbor: uint32(v)}
	if d.weighted {
		if r.Weight, err = d.value(); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

func (d *textDecoder) End() error {
	if d.sc.Scan() {
		return errors.New(errors.ErrCodeMalformedInput, "csr: trailing data after %d values", d.pos)
	}
	if err := d.sc.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "read csr")
	}
	return nil
}

const maxNeighbor = 1<<32 - 1

type binaryDecoder struct {
	r        *bufio.Reader
	weighted bool
	buf      [8]byte
}

func (d *binaryDecoder) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.New(errors.ErrCodeMalformedInput, "csr: unexpected end of file")
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read csr")
	}
	return d.buf[:n], nil
}

func (d *binaryDecoder) u64() (int64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (d *binaryDecoder) Header() (int64, int64, error) {
	n, err := d.u64()
	if err != nil {
		return 0, 0, err
	}
	m, err := d.u64()
	if err != nil {
		return 0, 0, err
	}
	return n, m, nil
}

func (d *binaryDecoder) Offset() (int64, error) { return d.u64() }

func (d *binaryDecoder) Record() (Record, error) {
	b, err := d.read(4)
	if err != nil {
		return Record{}, err
	}
	r := Record{Neighbor: binary.LittleEndian.Uint32(b)}
	if d.weighted {
		if r.Weight, err = d.u64(); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

func (d *binaryDecoder) End() error {
	if _, err := d.r.ReadByte(); err != io.EOF {
		if err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "read csr")
		}
		return errors.New(errors.ErrCodeMalformedInput, "csr: trailing data")
	}
	return nil
}
