package rw

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Writer writes big-endian fields to a seekable stream. Placeholders are
// written first and patched later with the *At methods, which restore the
// current position when done.
type Writer struct {
	w   io.WriteSeeker
	pos int64
	buf [8]byte
}

func NewWriter(w io.WriteSeeker) *Writer {
	pos, _ := w.Seek(0, io.SeekCurrent)
	return &Writer{w: w, pos: pos}
}

// Pos returns the current absolute position.
func (w *Writer) Pos() int64 { return w.pos }

// Seek moves to an absolute position. Seeking past the end and writing
// leaves a zero-filled gap.
func (w *Writer) Seek(pos int64) error {
	if _, err := w.w.Seek(pos, io.SeekStart); err != nil {
		return errors.WithMessagef(err, "seek to %#x", pos)
	}
	w.pos = pos
	return nil
}

// Write implements io.Writer so encoders (e.g. msgpack) can stream into the
// same position-tracked stream.
func (w *Writer) Write(b []byte) (int, error) {
	n, err := w.w.Write(b)
	w.pos += int64(n)
	if err != nil {
		return n, errors.WithMessagef(err, "write %d bytes at %#x", len(b), w.pos)
	}
	return n, nil
}

func (w *Writer) Bytes(b ...byte) error {
	_, err := w.Write(b)
	return err
}

func (w *Writer) U8(v uint8) error {
	w.buf[0] = v
	return w.Bytes(w.buf[:1]...)
}

func (w *Writer) I8(v int8) error {
	return w.U8(uint8(v))
}

func (w *Writer) U16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	return w.Bytes(w.buf[:2]...)
}

func (w *Writer) I16(v int16) error {
	return w.U16(uint16(v))
}

func (w *Writer) U32(v uint32) error {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	return w.Bytes(w.buf[:4]...)
}

// FixedString writes s as ASCII, cut or zero-padded to exactly n bytes.
func (w *Writer) FixedString(s string, n int) error {
	return w.Bytes(FixedASCII(s, n)...)
}

// Align writes zero bytes until the position is a multiple of n.
func (w *Writer) Align(n int64) error {
	pad := Align(w.pos, n) - w.pos
	if pad == 0 {
		return nil
	}
	return w.Bytes(make([]byte, pad)...)
}

func (w *Writer) at(pos int64, write func() error) error {
	ret := w.pos
	if err := w.Seek(pos); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	return w.Seek(ret)
}

// U8At patches a byte at pos.
func (w *Writer) U8At(pos int64, v uint8) error {
	return w.at(pos, func() error { return w.U8(v) })
}

// U16At patches a big-endian u16 at pos.
func (w *Writer) U16At(pos int64, v uint16) error {
	return w.at(pos, func() error { return w.U16(v) })
}

// U32At patches a big-endian u32 at pos.
func (w *Writer) U32At(pos int64, v uint32) error {
	return w.at(pos, func() error { return w.U32(v) })
}
