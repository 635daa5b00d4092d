package rw

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader reads big-endian fields from a seekable stream and remembers the
// furthest position it has read up to.
type Reader struct {
	r        io.ReadSeeker
	pos      int64
	furthest int64
	buf      [8]byte
}

func NewReader(r io.ReadSeeker) *Reader {
	pos, _ := r.Seek(0, io.SeekCurrent)
	return &Reader{r: r, pos: pos}
}

// Pos returns the current absolute position.
func (r *Reader) Pos() int64 { return r.pos }

// Furthest returns the largest position any read has ended at.
func (r *Reader) Furthest() int64 { return r.furthest }

// Seek moves to an absolute position.
func (r *Reader) Seek(pos int64) error {
	if _, err := r.r.Seek(pos, io.SeekStart); err != nil {
		return errors.WithMessagef(err, "seek to %#x", pos)
	}
	r.pos = pos
	return nil
}

// Size returns the length of the underlying stream. The current position is
// preserved.
func (r *Reader) Size() (int64, error) {
	end, err := r.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.WithMessage(err, "seek to end")
	}
	if err := r.Seek(r.pos); err != nil {
		return 0, err
	}
	return end, nil
}

func (r *Reader) fill(b []byte) error {
	if _, err := io.ReadFull(r.r, b); err != nil {
		return errors.WithMessagef(err, "read %d bytes at %#x", len(b), r.pos)
	}
	r.pos += int64(len(b))
	if r.pos > r.furthest {
		r.furthest = r.pos
	}
	return nil
}

// Read implements io.Reader so streaming decoders (e.g. msgpack) can read
// from the current position.
func (r *Reader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	r.pos += int64(n)
	if r.pos > r.furthest {
		r.furthest = r.pos
	}
	return n, err
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := r.fill(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.fill(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) U16() (uint16, error) {
	if err := r.fill(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	if err := r.fill(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

// CString reads a fixed-width field of n bytes holding a null-terminated
// string.
func (r *Reader) CString(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return CString(b), nil
}

// Padding reads n bytes and returns ErrNonZeroPadding if any of them is not
// zero.
func (r *Reader) Padding(n int) error {
	start := r.pos
	b, err := r.Bytes(n)
	if err != nil {
		return err
	}
	for i, c := range b {
		if c != 0 {
			return errors.WithMessagef(ErrNonZeroPadding, "byte %#x at %#x", c, start+int64(i))
		}
	}
	return nil
}
