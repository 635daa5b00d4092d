package bgm

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/bgmkit/bgm/rw"
)

// maxNoteLength is the longest note length the two-byte form can hold.
const maxNoteLength = 0xC0 + 0x3FFF

// Header field positions patched after the data they point to is written.
const (
	sizePos        = 0x04
	variationsPos  = 0x14
	drumsPos       = 0x1C
	instrumentsPos = 0x20
)

type (
	// Encoder writes BGM files. The zero value is ready to use.
	Encoder struct {
		// Logger receives debug output. Defaults to slog.Default().
		Logger *slog.Logger
	}

	// MissingTrackListError is returned when a segment references a key
	// that is not in Bgm.TrackLists.
	MissingTrackListError struct {
		ID TrackListID
	}

	// InvalidSegmentKindError is returned for a SegmentOp with an unknown
	// Kind.
	InvalidSegmentKindError struct {
		Kind SegmentKind
	}
)

func (e *MissingTrackListError) Error() string {
	return fmt.Sprintf("segment references missing track list %d", e.ID)
}

func (e *InvalidSegmentKindError) Error() string {
	return fmt.Sprintf("invalid segment kind %q", e.Kind)
}

// Encode serializes b. An unmodified decoded song encodes to the bytes it
// was decoded from.
func Encode(b *Bgm) ([]byte, error) {
	var buf rw.Buffer
	var e Encoder
	if err := e.Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes b to w, starting at position 0.
func (e *Encoder) Encode(w io.WriteSeeker, b *Bgm) error {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	enc := encoder{w: rw.NewWriter(w), bgm: b, log: log}
	return enc.encode()
}

// pendingWrite is data that is written after all variations, in file
// position order: a track list referenced by a Subseg op, or an unknown
// region.
type pendingWrite struct {
	pos    int64
	hasPos bool

	trackList    TrackListID
	placeholder  int64
	segmentStart int64

	unknown *Unknown
}

type encoder struct {
	w    *rw.Writer
	bgm  *Bgm
	log  *slog.Logger
	meta metadata
}

func (e *encoder) encode() error {
	w, b := e.w, e.bgm
	if err := w.Seek(0); err != nil {
		return err
	}
	if err := w.Bytes([]byte(Magic)...); err != nil {
		return err
	}
	if err := w.U32(0); err != nil {
		return err
	}
	if err := w.FixedString(b.Name, 4); err != nil {
		return err
	}
	if err := w.Bytes(0, 0, 0, 0, NumVariations, 0, 0, 0); err != nil {
		return err
	}
	for range NumVariations {
		if err := w.U16(0); err != nil {
			return err
		}
	}
	for _, n := range []int{len(b.Drums), len(b.Instruments)} {
		if err := w.U16(0); err != nil {
			return err
		}
		if err := w.U16(uint16(n)); err != nil {
			return err
		}
	}

	if len(b.Drums) > 0 {
		if err := e.patchHere(drumsPos); err != nil {
			return err
		}
		for _, d := range b.Drums {
			err := w.Bytes(d.Bank, d.Patch, d.CoarseTune, d.FineTune, d.Volume, uint8(d.Pan),
				d.Reverb, d.RandTune, d.RandVolume, d.RandPan, d.RandReverb, d.Pad0B)
			if err != nil {
				return err
			}
		}
	}
	if len(b.Instruments) > 0 {
		if err := e.patchHere(instrumentsPos); err != nil {
			return err
		}
		for _, i := range b.Instruments {
			err := w.Bytes(i.Bank, i.Patch, i.Volume, uint8(i.Pan), i.Reverb, i.CoarseTune, i.FineTune, i.Pad07)
			if err != nil {
				return err
			}
		}
	}

	var pending []pendingWrite
	for i := range b.Unknowns {
		u := &b.Unknowns[i]
		pending = append(pending, pendingWrite{pos: u.Start, hasPos: true, unknown: u})
	}
	for i, v := range b.Variations {
		if v == nil {
			continue
		}
		requests, err := e.encodeVariation(v, variationsPos+int64(i)*2)
		if err != nil {
			return err
		}
		pending = append(pending, requests...)
	}

	// positioned data first, in file order; new track lists after it in
	// the order they are referenced
	slices.SortStableFunc(pending, func(a, b pendingWrite) int {
		switch {
		case a.hasPos != b.hasPos:
			if a.hasPos {
				return -1
			}
			return 1
		case a.pos < b.pos:
			return -1
		case a.pos > b.pos:
			return 1
		}
		return 0
	})
	written := map[TrackListID]int64{}
	for _, p := range pending {
		if p.unknown != nil {
			if err := e.encodeUnknown(p.unknown); err != nil {
				return err
			}
			continue
		}
		if err := e.encodeTrackListRequest(p, written); err != nil {
			return err
		}
	}

	size := w.Pos()
	if o, ok := sizeOverrides[b.Name]; ok && o.computed == size {
		size = o.declared
	}
	if err := w.U32At(sizePos, uint32(size)); err != nil {
		return err
	}
	e.log.Debug("end", "pos", hexPos(w.Pos()))
	if err := w.Align(16); err != nil {
		return err
	}

	if e.meta.hasData() {
		if err := w.FixedString(metadataMagic, metadataMagicLen); err != nil {
			return err
		}
		if err := e.meta.encode(w); err != nil {
			return err
		}
	}

	if w.Pos() > MaxSize {
		return &TooBigError{Size: w.Pos()}
	}
	return nil
}

// patchHere aligns to 4 bytes and stores the position, in 4-byte units, in
// the u16 header field at field.
func (e *encoder) patchHere(field int64) error {
	if err := e.w.Align(4); err != nil {
		return err
	}
	return e.w.U16At(field, uint16(e.w.Pos()>>2))
}

func (e *encoder) encodeVariation(v *Variation, field int64) ([]pendingWrite, error) {
	w := e.w
	if err := e.patchHere(field); err != nil {
		return nil, err
	}
	start := w.Pos()
	e.log.Debug("variation", "pos", hexPos(start))
	var requests []pendingWrite
	for _, op := range v.Segments {
		var kind, arg uint16
		packed := op.Label&0x1F | uint16(op.Iterations&0x7F)<<5
		switch op.Kind {
		case Subseg:
			kind = segSubseg
			tl, ok := e.bgm.TrackLists[op.TrackList]
			if !ok {
				return nil, &MissingTrackListError{ID: op.TrackList}
			}
			r := pendingWrite{trackList: op.TrackList, placeholder: w.Pos() + 2, segmentStart: start}
			if tl.Pos != nil {
				r.pos, r.hasPos = *tl.Pos, true
			}
			requests = append(requests, r)
		case StartLoop:
			kind, arg = segStartLoop, op.Label
		case Wait:
			kind = segWait
		case EndLoop:
			kind, arg = segEndLoop, packed
		case Unknown6:
			kind, arg = segUnknown6, packed
		case Unknown7:
			kind, arg = segUnknown7, packed
		default:
			return nil, &InvalidSegmentKindError{Kind: op.Kind}
		}
		if err := w.U16(kind << 12); err != nil {
			return nil, err
		}
		if err := w.U16(arg); err != nil {
			return nil, err
		}
	}
	return requests, w.U32(0)
}

func (e *encoder) encodeUnknown(u *Unknown) error {
	e.log.Debug("unknown region", "start", hexPos(u.Start), "end", hexPos(u.End))
	if err := e.w.Seek(u.Start); err != nil {
		return err
	}
	if err := e.w.Bytes(u.Data...); err != nil {
		return err
	}
	return e.w.Seek(u.End)
}

func (e *encoder) encodeTrackListRequest(p pendingWrite, written map[TrackListID]int64) error {
	w := e.w
	if start, ok := written[p.trackList]; ok {
		e.log.Debug("sharing track list", "pos", hexPos(start))
		return w.U16At(p.placeholder, uint16((start-p.segmentStart)>>2))
	}
	tl := e.bgm.TrackLists[p.trackList]
	if err := w.Align(4); err != nil {
		return err
	}
	start := w.Pos()
	if tl.Pos != nil {
		start = *tl.Pos
		if err := w.Seek(start); err != nil {
			return err
		}
	}
	e.log.Debug("track list", "pos", hexPos(start), "offset", hexPos(start-p.segmentStart))
	if err := w.U16At(p.placeholder, uint16((start-p.segmentStart)>>2)); err != nil {
		return err
	}
	written[p.trackList] = start

	type todo struct {
		placeholder int64
		seq         *CommandSeq
	}
	var todos []todo
	for i := range tl.Tracks {
		t := &tl.Tracks[i]
		if i != 0 {
			e.meta.addTrackName(uint16(start), t.Name)
		}
		if t.Commands.Len() > 0 {
			todos = append(todos, todo{w.Pos(), &t.Commands})
		}
		priority, parent := t.Polyphony.raw(&t.Commands)
		flags := uint16(priority)<<flagPriorityShift | uint16(parent)<<flagParentShift
		if t.Disabled {
			flags |= flagDisabled
		}
		if t.Drum {
			flags |= flagDrum
		}
		if err := w.U16(0); err != nil {
			return err
		}
		if err := w.U16(flags); err != nil {
			return err
		}
	}
	for _, t := range todos {
		// track offsets are relative to the list and not shifted
		if err := w.U16At(t.placeholder, uint16(w.Pos()-start)); err != nil {
			return err
		}
		if err := e.encodeCommandSeq(t.seq); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeCommandSeq(seq *CommandSeq) error {
	w := e.w
	markers := map[MarkerID]int64{}
	type detour struct {
		pos int64
		Detour
	}
	var detours []detour
	for _, ev := range seq.events {
		var err error
		switch c := ev.Command.(type) {
		case End:
			err = w.U8(0)
		case Delay:
			err = encodeDelay(w, c.Ticks)
		case Note:
			err = encodeNote(w, c)
		case Marker:
			markers[c.Label] = w.Pos()
		case Detour:
			if err = w.U8(0xFE); err == nil {
				detours = append(detours, detour{w.Pos(), c})
				err = w.Bytes(0, 0, 0)
			}
		default:
			err = encodeControl(w, c)
		}
		if err != nil {
			return err
		}
	}

	// detours can point forward, so they are patched once every marker
	// position is known
	for _, d := range detours {
		start, ok := markers[d.StartLabel]
		if !ok {
			return &MissingStartMarkerError{Label: d.StartLabel}
		}
		end, ok := markers[d.EndLabel]
		if !ok {
			return &MissingEndMarkerError{Label: d.EndLabel}
		}
		length := end - start
		if length < 0 {
			return &UnorderedMarkersError{Start: d.StartLabel, End: d.EndLabel}
		}
		if length > 0xFF {
			return &DetourTooFarError{Start: d.StartLabel, End: d.EndLabel, Length: length}
		}
		if err := w.U16At(d.pos, uint16(start)); err != nil {
			return err
		}
		if err := w.U8At(d.pos+2, uint8(length)); err != nil {
			return err
		}
	}
	return nil
}

// encodeDelay writes ticks as one or more delay commands. Below 0x78 a delay
// is its own opcode; above, opcode 0x78|n and an extra byte add up to
// 0x78 + n*256 + extra, with n at most 7.
func encodeDelay(w *rw.Writer, ticks int) error {
	for ticks > 0 {
		if ticks < 0x78 {
			return w.U8(uint8(ticks))
		}
		ticks -= 0x78
		blocks := min(ticks>>8, 7)
		ticks -= blocks << 8
		extra := min(ticks, 0xFF)
		ticks -= extra
		if err := w.Bytes(0x78|uint8(blocks), uint8(extra)); err != nil {
			return err
		}
	}
	return nil
}

// encodeNote writes a note; lengths beyond what the format can hold are
// clamped.
func encodeNote(w *rw.Writer, n Note) error {
	length := min(n.Length, maxNoteLength)
	if err := w.Bytes(n.Pitch, n.Velocity); err != nil {
		return err
	}
	if length < 0xC0 {
		return w.U8(uint8(length))
	}
	length -= 0xC0
	return w.Bytes(uint8(length>>8)|0xC0, uint8(length))
}

func encodeControl(w *rw.Writer, cmd Command) error {
	var b []byte
	switch c := cmd.(type) {
	case MasterTempo:
		b = []byte{0xE0, hi(c.BPM), lo(c.BPM)}
	case MasterVolume:
		b = []byte{0xE1, c.Volume}
	case MasterPitchShift:
		b = []byte{0xE2, c.Cent}
	case MasterEffectType:
		b = []byte{0xE3, c.EffectType}
	case MasterTempoFade:
		b = []byte{0xE4, hi(c.Time), lo(c.Time), hi(c.Value), lo(c.Value)}
	case MasterVolumeFade:
		b = []byte{0xE5, hi(c.Time), lo(c.Time), c.Volume}
	case MasterEffect:
		b = []byte{0xE6, c.Index, c.Value}
	case TrackOverridePatch:
		b = []byte{0xE8, c.Bank, c.Patch}
	case SubTrackVolume:
		b = []byte{0xE9, c.Volume}
	case SubTrackPan:
		b = []byte{0xEA, uint8(c.Pan)}
	case SubTrackReverb:
		b = []byte{0xEB, c.Reverb}
	case SegTrackVolume:
		b = []byte{0xEC, c.Volume}
	case SubTrackCoarseTune:
		b = []byte{0xED, c.Tune}
	case SubTrackFineTune:
		b = []byte{0xEE, c.Tune}
	case SegTrackTune:
		b = []byte{0xEF, hi(uint16(c.Bend)), lo(uint16(c.Bend))}
	case TrackTremolo:
		b = []byte{0xF0, c.Amount, c.Speed, c.Time}
	case TrackTremoloSpeed:
		b = []byte{0xF1, c.Speed}
	case TrackTremoloTime:
		b = []byte{0xF2, c.Time}
	case TrackTremoloStop:
		b = []byte{0xF3}
	case UnknownF4:
		b = []byte{0xF4, c.Pan0, c.Pan1}
	case SetTrackVoice:
		b = []byte{0xF5, c.Index}
	case TrackVolumeFade:
		b = []byte{0xF6, hi(c.Time), lo(c.Time), c.Value}
	case SubTrackReverbType:
		b = []byte{0xF7, c.Index}
	case Jump:
		b = []byte{0xFC, hi(c.Unk00), lo(c.Unk00), c.Unk02}
	case EventTrigger:
		b = binary.BigEndian.AppendUint32([]byte{0xFD}, c.EventInfo)
	case UnknownFF:
		b = []byte{0xFF, c.Unk00, c.Unk01, c.Unk02}
	default:
		return fmt.Errorf("cannot encode command %T", cmd)
	}
	return w.Bytes(b...)
}

func hi(v uint16) byte { return byte(v >> 8) }
func lo(v uint16) byte { return byte(v) }
