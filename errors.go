package bgm

import (
	"errors"
	"fmt"

	"github.com/bgmkit/bgm/rw"
)

// Decode errors.
var (
	ErrInvalidMagic = errors.New("missing 'BGM ' signature at start")

	// ErrNonZeroPadding is returned when header padding holds data.
	ErrNonZeroPadding = rw.ErrNonZeroPadding
)

type (
	// SizeMismatchError reports a declared size the decoder could not
	// reconcile with the input length. It is only returned by a strict
	// Decoder; otherwise the mismatch is logged.
	SizeMismatchError struct {
		Declared int64
		Actual   int64
	}

	VariationCountError struct {
		Count uint8
	}

	UnknownSegmentOpError struct {
		Word uint32
		Pos  int64
	}

	UnknownOpcodeError struct {
		Opcode uint8
		Pos    int64
	}

	// MarkerCollisionError is returned when a detour points at a position
	// that holds a real command instead of a marker.
	MarkerCollisionError struct {
		Offset int
		Found  Command
	}

	// EmptyTrackError is returned when a track has a command offset but no
	// commands were decoded there.
	EmptyTrackError struct {
		Pos int64
	}

	// CommandAfterEndError is returned when a marker lies beyond the end of
	// the decoded stream.
	CommandAfterEndError struct {
		Offset int
		Found  Command
	}

	// DetourRangeError is returned when a detour points before the start of
	// its stream.
	DetourRangeError struct {
		Target int64
		Start  int64
	}
)

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("the file says it is %#x bytes, but it is actually %#x bytes", e.Declared, e.Actual)
}

func (e *VariationCountError) Error() string {
	return fmt.Sprintf("exactly %d variations are supported, but this file has %d", NumVariations, e.Count)
}

func (e *UnknownSegmentOpError) Error() string {
	return fmt.Sprintf("unknown segment command %#x at %#x", e.Word, e.Pos)
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown sequence command %#x at %#x", e.Opcode, e.Pos)
}

func (e *MarkerCollisionError) Error() string {
	return fmt.Sprintf("detour target at offset %#x collides with %v", e.Offset, e.Found)
}

func (e *EmptyTrackError) Error() string {
	return fmt.Sprintf("track at %#x points to an empty command sequence", e.Pos)
}

func (e *CommandAfterEndError) Error() string {
	return fmt.Sprintf("command after end of parsed sequence: %v at offset %#x", e.Found, e.Offset)
}

func (e *DetourRangeError) Error() string {
	return fmt.Sprintf("detour to %#x points before its sequence start %#x", e.Target, e.Start)
}

// Encode errors.
type (
	MissingStartMarkerError struct {
		Label MarkerID
	}

	MissingEndMarkerError struct {
		Label MarkerID
	}

	// UnorderedMarkersError is returned when a detour's end marker is
	// written before its start marker.
	UnorderedMarkersError struct {
		Start MarkerID
		End   MarkerID
	}

	// DetourTooFarError is returned when a detour spans more than 255
	// bytes, which does not fit its length field.
	DetourTooFarError struct {
		Start  MarkerID
		End    MarkerID
		Length int64
	}

	// TooBigError is returned when the encoded file does not fit the
	// engine's buffer.
	TooBigError struct {
		Size int64
	}
)

func (e *MissingStartMarkerError) Error() string {
	return fmt.Sprintf("cannot find start marker %q", e.Label)
}

func (e *MissingEndMarkerError) Error() string {
	return fmt.Sprintf("cannot find end marker %q", e.Label)
}

func (e *UnorderedMarkersError) Error() string {
	return fmt.Sprintf("start marker %q comes after end marker %q", e.Start, e.End)
}

func (e *DetourTooFarError) Error() string {
	return fmt.Sprintf("end marker %q is %d bytes away from start marker %q", e.End, e.Length, e.Start)
}

func (e *TooBigError) Error() string {
	return fmt.Sprintf("encoded BGM is %#x bytes, the engine can load at most %#x", e.Size, MaxSize)
}
