// Package rw contains the big-endian field primitives shared by the BGM
// decoder and encoder: integer reads and writes, fixed-width ASCII strings,
// alignment and zero-padding helpers, and an in-memory seekable buffer.
package rw

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ErrNonZeroPadding is returned by Reader.Padding when a byte that should be
// zero is not.
var ErrNonZeroPadding = errors.New("non-zero padding")

// Align rounds value up to the next multiple of n. Values that are already
// aligned, and any n <= 1, return value unchanged.
func Align(value int64, n int64) int64 {
	if n <= 1 {
		return value
	}
	if rem := value % n; rem != 0 {
		return value + n - rem
	}
	return value
}

func isNonASCII(r rune) bool { return r > unicode.MaxASCII }

// ASCII drops every non-ASCII rune from s.
func ASCII(s string) string {
	ret, _, _ := transform.String(runes.Remove(runes.Predicate(isNonASCII)), s)
	return ret
}

// FixedASCII returns s reduced to ASCII and cut or zero-padded to exactly n
// bytes.
func FixedASCII(s string, n int) []byte {
	ret := make([]byte, n)
	copy(ret, ASCII(s))
	return ret
}

// CString interprets b as a null-terminated string; bytes after the first
// null are ignored. Invalid UTF-8 is replaced.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}
