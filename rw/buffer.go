package rw

import (
	"fmt"
	"io"
)

// Buffer is an in-memory io.WriteSeeker. Writing after seeking past the end
// zero-fills the gap, like a sparse file.
type Buffer struct {
	data []byte
	pos  int64
}

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		if end > int64(cap(b.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position %d", pos)
	}
	b.pos = pos
	return pos, nil
}

// Bytes returns everything written so far. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the length of the written data, which can exceed Pos after a
// backwards seek.
func (b *Buffer) Len() int { return len(b.data) }
