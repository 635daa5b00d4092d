package bgm

import (
	"errors"
	"maps"
	"slices"
)

// Magic is the signature at the start of every BGM file.
const Magic = "BGM "

// NumVariations is the fixed number of variation slots in a file.
const NumVariations = 4

// NumTracks is the number of tracks in every track list. Track 0 is the
// master track.
const NumTracks = 16

// MaxSize is the largest file the sound engine can load.
const MaxSize = 0x8A8F

// ErrNoVariationSlot is returned by AddVariation when all slots are in use.
var ErrNoVariationSlot = errors.New("all variation slots are in use")

type (
	// Bgm is a decoded song: up to four alternate arrangements (variations)
	// playing track lists, plus the drum and instrument tables they use.
	Bgm struct {
		// Name is the ≤4 character identifier stored in the header, e.g. "117 ".
		Name string

		// Variations are the arrangements; a nil slot is empty.
		Variations [NumVariations]*Variation

		Drums       []Drum       `yaml:",omitempty"`
		Instruments []Instrument `yaml:",omitempty"`

		// TrackLists owns every track list. Segment ops reference them by
		// key, so one list can be played by several segments.
		TrackLists map[TrackListID]*TrackList

		// Unknowns are byte ranges copied verbatim on encode.
		Unknowns []Unknown `yaml:",omitempty"`
	}

	// Variation is one arrangement: a list of segment ops, executed in order.
	Variation struct {
		Segments []SegmentOp
	}

	// SegmentKind selects what a SegmentOp does.
	SegmentKind string

	// SegmentOp is one instruction of a variation. Which fields are used
	// depends on Kind: Subseg uses TrackList, StartLoop uses Label, and
	// EndLoop and the two reserved kinds use Label and Iterations.
	SegmentOp struct {
		Kind       SegmentKind
		TrackList  TrackListID `yaml:",omitempty"`
		Label      uint16      `yaml:",omitempty"`
		Iterations uint8       `yaml:",omitempty"`
	}

	// TrackListID is the key of a TrackList in Bgm.TrackLists.
	TrackListID uint64

	// TrackList is a block of 16 tracks played together.
	TrackList struct {
		// Pos is the file position the list was decoded from. The encoder
		// writes the list back at the same position, which keeps unmodified
		// files byte-identical. Nil for lists created in memory.
		Pos    *int64 `yaml:",omitempty"`
		Tracks [NumTracks]Track
	}

	Track struct {
		// Name is only stored in the optional metadata block, and never for
		// the master track.
		Name      string `yaml:",omitempty"`
		Disabled  bool   `yaml:",omitempty"`
		Drum      bool   `yaml:",omitempty"`
		Polyphony Polyphony
		Commands  CommandSeq
	}

	// Drum is a 12 byte record of the drum table.
	Drum struct {
		Bank       uint8
		Patch      uint8
		CoarseTune uint8
		FineTune   uint8
		Volume     uint8
		// Pan is 0 for left, 64 for center.
		Pan        int8
		Reverb     uint8
		RandTune   uint8
		RandVolume uint8
		RandPan    uint8
		RandReverb uint8
		Pad0B      uint8 `yaml:",omitempty"`
	}

	// Instrument is an 8 byte record of the instrument table.
	Instrument struct {
		// Bank: upper nibble is the bank, lower nibble the release style.
		Bank       uint8
		Patch      uint8
		Volume     uint8
		Pan        int8
		Reverb     uint8
		CoarseTune uint8
		FineTune   uint8
		Pad07      uint8 `yaml:",omitempty"`
	}

	// Unknown is a region of the file that is not understood and is copied
	// as-is. Start and End are absolute file positions.
	Unknown struct {
		Start int64
		End   int64
		Data  []byte
	}
)

const (
	Subseg    SegmentKind = "subseg"
	StartLoop SegmentKind = "startLoop"
	Wait      SegmentKind = "wait"
	EndLoop   SegmentKind = "endLoop"
	Unknown6  SegmentKind = "unknown6"
	Unknown7  SegmentKind = "unknown7"
)

// New returns an empty song.
func New() *Bgm {
	return &Bgm{
		Name:       "New ",
		TrackLists: map[TrackListID]*TrackList{},
	}
}

// NewTrackList returns a track list of disabled, empty tracks.
func NewTrackList() *TrackList {
	var ret TrackList
	for i := range ret.Tracks {
		ret.Tracks[i] = NewTrack()
	}
	return &ret
}

// NewTrack returns a disabled, empty track with automatic polyphony.
func NewTrack() Track {
	return Track{Disabled: true, Polyphony: Polyphony{Kind: Automatic}}
}

// CanAddVariation reports whether an empty variation slot exists.
func (b *Bgm) CanAddVariation() bool {
	return slices.Contains(b.Variations[:], nil)
}

// AddVariation puts an empty variation into the first free slot and returns
// the slot index and the variation.
func (b *Bgm) AddVariation() (int, *Variation, error) {
	i := slices.Index(b.Variations[:], nil)
	if i < 0 {
		return 0, nil, ErrNoVariationSlot
	}
	b.Variations[i] = &Variation{}
	return i, b.Variations[i], nil
}

// AddTrackList registers tl under a new key, one more than the largest key
// in use, and returns the key.
func (b *Bgm) AddTrackList(tl *TrackList) TrackListID {
	if b.TrackLists == nil {
		b.TrackLists = map[TrackListID]*TrackList{}
	}
	var id TrackListID
	if len(b.TrackLists) > 0 {
		id = slices.Max(slices.Collect(maps.Keys(b.TrackLists)))
	}
	id++
	b.TrackLists[id] = tl
	return id
}

// FindTrackListWithPos returns the key of the track list decoded from pos.
func (b *Bgm) FindTrackListWithPos(pos int64) (TrackListID, bool) {
	for id, tl := range b.TrackLists {
		if tl.Pos != nil && *tl.Pos == pos {
			return id, true
		}
	}
	return 0, false
}

// SortedTrackListIDs returns the keys of b.TrackLists in ascending order.
func (b *Bgm) SortedTrackListIDs() []TrackListID {
	return slices.Sorted(maps.Keys(b.TrackLists))
}
