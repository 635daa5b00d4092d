package bgm

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

type (
	// Command is one instruction of a track's command stream. The concrete
	// types below are the only implementations.
	Command interface {
		commandName() string
	}

	// EventID identifies an Event for as long as it lives in a CommandSeq.
	// It is never encoded.
	EventID uint64

	// Event pairs a Command with its identity.
	Event struct {
		ID      EventID
		Command Command
	}

	// MarkerID names a Marker. Detours reference markers by id.
	MarkerID string
)

var lastEventID atomic.Uint64

// NewEvent wraps a command into an event with a fresh id.
func NewEvent(c Command) Event {
	return Event{ID: EventID(lastEventID.Add(1)), Command: c}
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %v", e.ID, e.Command)
}

type (
	// End terminates the stream (opcode 0x00).
	End struct{}

	// Delay advances time. It is the only command that does.
	Delay struct {
		Ticks int
	}

	// Note plays Pitch (0x80..0xD3, also the opcode) for Length ticks.
	Note struct {
		Pitch    uint8
		Velocity uint8
		Length   uint16
	}

	MasterTempo struct {
		BPM uint16
	}

	MasterVolume struct {
		Volume uint8
	}

	MasterPitchShift struct {
		Cent uint8
	}

	MasterEffectType struct {
		EffectType uint8
	}

	MasterTempoFade struct {
		Time  uint16
		Value uint16
	}

	MasterVolumeFade struct {
		Time   uint16
		Volume uint8
	}

	MasterEffect struct {
		Index uint8
		Value uint8
	}

	TrackOverridePatch struct {
		Bank  uint8
		Patch uint8
	}

	// Sub-track commands last until the track list changes; seg-track
	// commands last for the whole segment.
	SubTrackVolume struct {
		Volume uint8
	}

	SubTrackPan struct {
		Pan int8
	}

	SubTrackReverb struct {
		Reverb uint8
	}

	SegTrackVolume struct {
		Volume uint8
	}

	SubTrackCoarseTune struct {
		Tune uint8
	}

	SubTrackFineTune struct {
		Tune uint8
	}

	SegTrackTune struct {
		Bend int16
	}

	TrackTremolo struct {
		Amount uint8
		Speed  uint8
		Time   uint8
	}

	TrackTremoloSpeed struct {
		Speed uint8
	}

	TrackTremoloTime struct {
		Time uint8
	}

	TrackTremoloStop struct{}

	// UnknownF4 is preserved verbatim; it appears to set a pan pair.
	UnknownF4 struct {
		Pan0 uint8
		Pan1 uint8
	}

	SetTrackVoice struct {
		Index uint8
	}

	TrackVolumeFade struct {
		Time  uint16
		Value uint8
	}

	SubTrackReverbType struct {
		Index uint8
	}

	// Jump fields are kept as-is; their meaning is not known.
	Jump struct {
		Unk00 uint16
		Unk02 uint8
	}

	EventTrigger struct {
		EventInfo uint32
	}

	// Detour plays the bytes between two markers of the same stream and
	// then returns.
	Detour struct {
		StartLabel MarkerID
		EndLabel   MarkerID
	}

	UnknownFF struct {
		Unk00 uint8
		Unk01 uint8
		Unk02 uint8
	}

	// Marker is a zero-width position tag. It encodes to nothing.
	Marker struct {
		Label MarkerID
	}
)

func (End) commandName() string                { return "end" }
func (Delay) commandName() string              { return "delay" }
func (Note) commandName() string               { return "note" }
func (MasterTempo) commandName() string        { return "masterTempo" }
func (MasterVolume) commandName() string       { return "masterVolume" }
func (MasterPitchShift) commandName() string   { return "masterPitchShift" }
func (MasterEffectType) commandName() string   { return "masterEffectType" }
func (MasterTempoFade) commandName() string    { return "masterTempoFade" }
func (MasterVolumeFade) commandName() string   { return "masterVolumeFade" }
func (MasterEffect) commandName() string       { return "masterEffect" }
func (TrackOverridePatch) commandName() string { return "trackOverridePatch" }
func (SubTrackVolume) commandName() string     { return "subTrackVolume" }
func (SubTrackPan) commandName() string        { return "subTrackPan" }
func (SubTrackReverb) commandName() string     { return "subTrackReverb" }
func (SegTrackVolume) commandName() string     { return "segTrackVolume" }
func (SubTrackCoarseTune) commandName() string { return "subTrackCoarseTune" }
func (SubTrackFineTune) commandName() string   { return "subTrackFineTune" }
func (SegTrackTune) commandName() string       { return "segTrackTune" }
func (TrackTremolo) commandName() string       { return "trackTremolo" }
func (TrackTremoloSpeed) commandName() string  { return "trackTremoloSpeed" }
func (TrackTremoloTime) commandName() string   { return "trackTremoloTime" }
func (TrackTremoloStop) commandName() string   { return "trackTremoloStop" }
func (UnknownF4) commandName() string          { return "unknownF4" }
func (SetTrackVoice) commandName() string      { return "setTrackVoice" }
func (TrackVolumeFade) commandName() string    { return "trackVolumeFade" }
func (SubTrackReverbType) commandName() string { return "subTrackReverbType" }
func (Jump) commandName() string               { return "jump" }
func (EventTrigger) commandName() string       { return "eventTrigger" }
func (Detour) commandName() string             { return "detour" }
func (UnknownFF) commandName() string          { return "unknownFF" }
func (Marker) commandName() string             { return "marker" }

// commandTypes maps the interchange name of every command to its type.
var commandTypes = map[string]reflect.Type{}

func init() {
	for _, c := range []Command{
		End{}, Delay{}, Note{}, MasterTempo{}, MasterVolume{}, MasterPitchShift{},
		MasterEffectType{}, MasterTempoFade{}, MasterVolumeFade{}, MasterEffect{},
		TrackOverridePatch{}, SubTrackVolume{}, SubTrackPan{}, SubTrackReverb{},
		SegTrackVolume{}, SubTrackCoarseTune{}, SubTrackFineTune{}, SegTrackTune{},
		TrackTremolo{}, TrackTremoloSpeed{}, TrackTremoloTime{}, TrackTremoloStop{},
		UnknownF4{}, SetTrackVoice{}, TrackVolumeFade{}, SubTrackReverbType{},
		Jump{}, EventTrigger{}, Detour{}, UnknownFF{}, Marker{},
	} {
		commandTypes[c.commandName()] = reflect.TypeOf(c)
	}
}

// CommandName returns the interchange name of c, e.g. "note".
func CommandName(c Command) string {
	return c.commandName()
}
