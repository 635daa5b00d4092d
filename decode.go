package bgm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/btree"

	"github.com/bgmkit/bgm/rw"
)

// Segment op kinds, stored in the top nibble of each 32-bit segment word.
const (
	segSubseg    = 1
	segStartLoop = 3
	segWait      = 4
	segEndLoop   = 5
	segUnknown6  = 6
	segUnknown7  = 7
)

// Track flag bits.
const (
	flagDrum          = 0x0080
	flagDisabled      = 0x0100
	flagParentShift   = 9
	flagPriorityShift = 13
)

// Decoder parses BGM files. The zero value is ready to use.
type Decoder struct {
	// Strict makes a declared size that cannot be explained by padding or
	// trailing metadata an error instead of a warning.
	Strict bool

	// Logger receives warnings about irregular input and debug output.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Decode parses a BGM file held in memory.
func Decode(data []byte) (*Bgm, error) {
	var d Decoder
	return d.Decode(bytes.NewReader(data))
}

// Decode parses a BGM file from r. The whole stream is the file.
func (d *Decoder) Decode(r io.ReadSeeker) (*Bgm, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	dec := decoder{f: rw.NewReader(r), log: log, strict: d.Strict}
	return dec.decode()
}

type decoder struct {
	f      *rw.Reader
	log    *slog.Logger
	strict bool
	bgm    *Bgm
}

func hexPos(v int64) string {
	return fmt.Sprintf("%#x", v)
}

func (d *decoder) decode() (*Bgm, error) {
	f := d.f
	if err := f.Seek(0); err != nil {
		return nil, err
	}
	magic, err := f.Bytes(len(Magic))
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, ErrInvalidMagic
	}
	declared32, err := f.U32()
	if err != nil {
		return nil, err
	}
	declared := int64(declared32)
	actual, err := f.Size()
	if err != nil {
		return nil, err
	}
	metadataPos, err := d.checkSize(declared, actual)
	if err != nil {
		return nil, err
	}

	d.bgm = New()
	if err := f.Seek(0x08); err != nil {
		return nil, err
	}
	if d.bgm.Name, err = f.CString(4); err != nil {
		return nil, err
	}
	if err := f.Padding(4); err != nil {
		return nil, err
	}
	count, err := f.U8()
	if err != nil {
		return nil, err
	}
	if count != NumVariations {
		return nil, &VariationCountError{Count: count}
	}
	if err := f.Padding(3); err != nil {
		return nil, err
	}
	var variationPos [NumVariations]int64
	for i := range variationPos {
		v, err := f.U16()
		if err != nil {
			return nil, err
		}
		variationPos[i] = int64(v) << 2
	}
	var table [4]uint16 // drums offset, count, instruments offset, count
	for i := range table {
		if table[i], err = f.U16(); err != nil {
			return nil, err
		}
	}

	for _, region := range unknownRegions[d.bgm.Name] {
		d.log.Warn("forcibly reading unknown region", "start", hexPos(region[0]), "end", hexPos(region[1]))
		if err := f.Seek(region[0]); err != nil {
			return nil, err
		}
		data, err := f.Bytes(int(region[1] - region[0]))
		if err != nil {
			return nil, err
		}
		d.bgm.Unknowns = append(d.bgm.Unknowns, Unknown{Start: region[0], End: region[1], Data: data})
	}

	for i, pos := range variationPos {
		if pos == 0 {
			continue
		}
		if d.bgm.Variations[i], err = d.decodeVariation(pos); err != nil {
			return nil, err
		}
	}

	if pos := int64(table[0]) << 2; pos != 0 {
		if err := f.Seek(pos); err != nil {
			return nil, err
		}
		d.bgm.Drums = make([]Drum, table[1])
		for i := range d.bgm.Drums {
			if err := d.decodeDrum(&d.bgm.Drums[i]); err != nil {
				return nil, err
			}
		}
	}
	if pos := int64(table[2]) << 2; pos != 0 {
		if err := f.Seek(pos); err != nil {
			return nil, err
		}
		d.bgm.Instruments = make([]Instrument, table[3])
		for i := range d.bgm.Instruments {
			if err := d.decodeInstrument(&d.bgm.Instruments[i]); err != nil {
				return nil, err
			}
		}
	}

	if metadataPos >= 0 {
		if err := f.Seek(metadataPos + metadataMagicLen); err != nil {
			return nil, err
		}
		if m, err := decodeMetadata(f); err != nil {
			d.log.Warn("unable to decode metadata, ignoring it", "pos", hexPos(metadataPos), "err", err.Error())
		} else {
			m.apply(d.bgm)
		}
	}

	if furthest := f.Furthest(); rw.Align(furthest, 16) < actual {
		d.log.Warn("unused data", "pos", hexPos(furthest), "size", hexPos(actual))
	}
	return d.bgm, nil
}

// checkSize reconciles the declared size with the actual input size. It
// returns the position of the trailing metadata magic, or -1 if there is
// none.
func (d *decoder) checkSize(declared, actual int64) (int64, error) {
	if declared == actual {
		return -1, nil
	}
	for _, pos := range []int64{rw.Align(declared, 8), rw.Align(declared, 16)} {
		if pos+metadataMagicLen > actual {
			continue
		}
		if err := d.f.Seek(pos); err != nil {
			return -1, err
		}
		if magic, err := d.f.CString(metadataMagicLen); err == nil && magic == metadataMagic {
			return pos, nil
		}
	}
	if rw.Align(declared, 16) == actual {
		if err := d.f.Seek(declared); err != nil {
			return -1, err
		}
		err := d.f.Padding(int(actual - declared))
		if errors.Is(err, rw.ErrNonZeroPadding) {
			d.log.Warn("non-zero bytes after declared end", "err", err.Error())
			return -1, nil
		}
		return -1, err
	}
	if d.strict {
		return -1, &SizeMismatchError{Declared: declared, Actual: actual}
	}
	d.log.Warn("size mismatch", "declared", hexPos(declared), "actual", hexPos(actual))
	return -1, nil
}

func (d *decoder) decodeVariation(start int64) (*Variation, error) {
	d.log.Debug("variation", "pos", hexPos(start))
	v := &Variation{}
	for pos := start; ; pos += 4 {
		if err := d.f.Seek(pos); err != nil {
			return nil, err
		}
		word, err := d.f.U32()
		if err != nil {
			return nil, err
		}
		if word == 0 {
			return v, nil
		}
		op, err := d.decodeSegmentOp(word, start, pos)
		if err != nil {
			return nil, err
		}
		v.Segments = append(v.Segments, op)
	}
}

func (d *decoder) decodeSegmentOp(word uint32, variationStart, pos int64) (SegmentOp, error) {
	label := uint16(word & 0x1F)
	iterations := uint8((word >> 5) & 0x7F)
	switch word >> 28 {
	case segSubseg:
		listPos := variationStart + int64(word&0xFFFF)<<2
		id, ok := d.bgm.FindTrackListWithPos(listPos)
		if ok {
			d.log.Debug("sharing track list", "pos", hexPos(listPos))
		} else {
			tl, err := d.decodeTrackList(listPos)
			if err != nil {
				return SegmentOp{}, err
			}
			id = d.bgm.AddTrackList(tl)
		}
		return SegmentOp{Kind: Subseg, TrackList: id}, nil
	case segStartLoop:
		return SegmentOp{Kind: StartLoop, Label: uint16(word)}, nil
	case segWait:
		return SegmentOp{Kind: Wait}, nil
	case segEndLoop:
		return SegmentOp{Kind: EndLoop, Label: label, Iterations: iterations}, nil
	case segUnknown6:
		return SegmentOp{Kind: Unknown6, Label: label, Iterations: iterations}, nil
	case segUnknown7:
		return SegmentOp{Kind: Unknown7, Label: label, Iterations: iterations}, nil
	}
	return SegmentOp{}, &UnknownSegmentOpError{Word: word, Pos: pos}
}

func (d *decoder) decodeTrackList(pos int64) (*TrackList, error) {
	d.log.Debug("track list", "pos", hexPos(pos))
	tl := &TrackList{Pos: &pos}
	for i := range tl.Tracks {
		if err := d.f.Seek(pos + int64(i)*4); err != nil {
			return nil, err
		}
		if err := d.decodeTrack(&tl.Tracks[i], pos); err != nil {
			return nil, err
		}
	}
	return tl, nil
}

func (d *decoder) decodeTrack(t *Track, listPos int64) error {
	offset, err := d.f.U16()
	if err != nil {
		return err
	}
	flags, err := d.f.U16()
	if err != nil {
		return err
	}
	t.Disabled = flags&flagDisabled != 0
	t.Drum = flags&flagDrum != 0
	t.Polyphony = polyphonyFromRaw(uint8(flags>>flagPriorityShift)&7, uint8(flags>>flagParentShift)&0xF)
	if offset == 0 {
		return nil
	}
	pos := listPos + int64(offset)
	if err := d.f.Seek(pos); err != nil {
		return err
	}
	if t.Commands, err = d.decodeCommandSeq(); err != nil {
		return err
	}
	if t.Commands.Len() == 0 {
		return &EmptyTrackError{Pos: pos}
	}
	return nil
}

// offsetEvents orders decoded events by the offset they were read from.
// Keys are (offset+1)*2 so that a marker at offset o can be keyed 2o+1,
// sorting right before the command read at o.
type offsetEvents struct {
	tree *btree.BTreeG[keyedEvent]
}

type keyedEvent struct {
	key   int
	event Event
}

func newOffsetEvents() *offsetEvents {
	return &offsetEvents{tree: btree.NewG(8, func(a, b keyedEvent) bool { return a.key < b.key })}
}

func offsetKey(offset int) int { return (offset + 1) * 2 }

func keyOffset(key int) int { return (key - 1) / 2 }

func (m *offsetEvents) insert(offset int, c Command) {
	m.tree.ReplaceOrInsert(keyedEvent{key: offsetKey(offset), event: NewEvent(c)})
}

// upsertMarker returns the label of the marker at offset, creating it if
// needed.
func (m *offsetEvents) upsertMarker(offset int) (MarkerID, error) {
	key := offsetKey(offset) - 1
	if found, ok := m.tree.Get(keyedEvent{key: key}); ok {
		if marker, ok := found.event.Command.(Marker); ok {
			return marker.Label, nil
		}
		return "", &MarkerCollisionError{Offset: offset, Found: found.event.Command}
	}
	label := MarkerID(fmt.Sprintf("Offset 0x%X", offset))
	m.tree.ReplaceOrInsert(keyedEvent{key: key, event: NewEvent(Marker{Label: label})})
	return label, nil
}

// lastOffset is the offset of the last event, markers included.
func (m *offsetEvents) lastOffset() int {
	if last, ok := m.tree.Max(); ok {
		return keyOffset(last.key)
	}
	return 0
}

func (d *decoder) decodeCommandSeq() (CommandSeq, error) {
	f := d.f
	start := f.Pos()
	events := newOffsetEvents()
	seenEnd := false
	for {
		pos := f.Pos()
		offset := int(pos - start)
		if seenEnd {
			if target, ok := forcedMarkers[pos]; ok {
				if _, err := events.upsertMarker(int(target - start)); err != nil {
					return CommandSeq{}, err
				}
			}
			// commands after the End are only read while some detour still
			// points past the current position
			if offset >= events.lastOffset() {
				break
			}
		}
		opcode, err := f.U8()
		if err != nil {
			return CommandSeq{}, err
		}
		cmd, err := d.decodeCommand(opcode, start, events)
		if err != nil {
			return CommandSeq{}, err
		}
		if _, ok := cmd.(End); ok {
			seenEnd = true
		}
		events.insert(offset, cmd)
	}

	size := int(f.Pos() - start)
	var after *keyedEvent
	events.tree.AscendGreaterOrEqual(keyedEvent{key: offsetKey(size)}, func(e keyedEvent) bool {
		after = &e
		return false
	})
	if after != nil {
		return CommandSeq{}, &CommandAfterEndError{Offset: keyOffset(after.key), Found: after.event.Command}
	}

	seq := CommandSeq{events: make([]Event, 0, events.tree.Len())}
	events.tree.Ascend(func(e keyedEvent) bool {
		seq.events = append(seq.events, e.event)
		return true
	})
	return seq, nil
}

func (d *decoder) decodeCommand(opcode uint8, start int64, events *offsetEvents) (Command, error) {
	f := d.f
	switch {
	case opcode == 0x00:
		return End{}, nil
	case opcode < 0x78:
		return Delay{Ticks: int(opcode)}, nil
	case opcode < 0x80:
		extra, err := f.U8()
		return Delay{Ticks: 0x78 + int(opcode-0x78)<<8 + int(extra)}, err
	case opcode <= 0xD3:
		velocity, err := f.U8()
		if err != nil {
			return nil, err
		}
		length, err := d.decodeNoteLength()
		return Note{Pitch: opcode, Velocity: velocity, Length: length}, err
	}

	var err error
	u8 := func() uint8 {
		var v uint8
		if err == nil {
			v, err = f.U8()
		}
		return v
	}
	u16 := func() uint16 {
		var v uint16
		if err == nil {
			v, err = f.U16()
		}
		return v
	}
	var cmd Command
	switch opcode {
	case 0xE0:
		cmd = MasterTempo{BPM: u16()}
	case 0xE1:
		cmd = MasterVolume{Volume: u8()}
	case 0xE2:
		cmd = MasterPitchShift{Cent: u8()}
	case 0xE3:
		cmd = MasterEffectType{EffectType: u8()}
	case 0xE4:
		cmd = MasterTempoFade{Time: u16(), Value: u16()}
	case 0xE5:
		cmd = MasterVolumeFade{Time: u16(), Volume: u8()}
	case 0xE6:
		cmd = MasterEffect{Index: u8(), Value: u8()}
	case 0xE8:
		cmd = TrackOverridePatch{Bank: u8(), Patch: u8()}
	case 0xE9:
		cmd = SubTrackVolume{Volume: u8()}
	case 0xEA:
		cmd = SubTrackPan{Pan: int8(u8())}
	case 0xEB:
		cmd = SubTrackReverb{Reverb: u8()}
	case 0xEC:
		cmd = SegTrackVolume{Volume: u8()}
	case 0xED:
		cmd = SubTrackCoarseTune{Tune: u8()}
	case 0xEE:
		cmd = SubTrackFineTune{Tune: u8()}
	case 0xEF:
		cmd = SegTrackTune{Bend: int16(u16())}
	case 0xF0:
		cmd = TrackTremolo{Amount: u8(), Speed: u8(), Time: u8()}
	case 0xF1:
		cmd = TrackTremoloSpeed{Speed: u8()}
	case 0xF2:
		cmd = TrackTremoloTime{Time: u8()}
	case 0xF3:
		cmd = TrackTremoloStop{}
	case 0xF4:
		cmd = UnknownF4{Pan0: u8(), Pan1: u8()}
	case 0xF5:
		cmd = SetTrackVoice{Index: u8()}
	case 0xF6:
		cmd = TrackVolumeFade{Time: u16(), Value: u8()}
	case 0xF7:
		cmd = SubTrackReverbType{Index: u8()}
	case 0xFC:
		cmd = Jump{Unk00: u16(), Unk02: u8()}
	case 0xFD:
		hi := u16()
		cmd = EventTrigger{EventInfo: uint32(hi)<<16 | uint32(u16())}
	case 0xFE:
		target, length := int64(u16()), u8()
		if err != nil {
			return nil, err
		}
		if target < start {
			return nil, &DetourRangeError{Target: target, Start: start}
		}
		from := int(target - start)
		var detour Detour
		if detour.StartLabel, err = events.upsertMarker(from); err != nil {
			return nil, err
		}
		if detour.EndLabel, err = events.upsertMarker(from + int(length)); err != nil {
			return nil, err
		}
		cmd = detour
	case 0xFF:
		cmd = UnknownFF{Unk00: u8(), Unk01: u8(), Unk02: u8()}
	default:
		return nil, &UnknownOpcodeError{Opcode: opcode, Pos: f.Pos() - 1}
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// decodeNoteLength reads a note length: one byte below 0xC0, otherwise two
// bytes holding 0xC0 plus a 14-bit value.
func (d *decoder) decodeNoteLength() (uint16, error) {
	first, err := d.f.U8()
	if err != nil || first < 0xC0 {
		return uint16(first), err
	}
	second, err := d.f.U8()
	return 0xC0 + (uint16(first&0x3F)<<8 | uint16(second)), err
}

func (d *decoder) decodeDrum(drum *Drum) error {
	b, err := d.f.Bytes(12)
	if err != nil {
		return err
	}
	*drum = Drum{
		Bank:       b[0],
		Patch:      b[1],
		CoarseTune: b[2],
		FineTune:   b[3],
		Volume:     b[4],
		Pan:        int8(b[5]),
		Reverb:     b[6],
		RandTune:   b[7],
		RandVolume: b[8],
		RandPan:    b[9],
		RandReverb: b[10],
		Pad0B:      b[11],
	}
	return nil
}

func (d *decoder) decodeInstrument(instr *Instrument) error {
	b, err := d.f.Bytes(8)
	if err != nil {
		return err
	}
	*instr = Instrument{
		Bank:       b[0],
		Patch:      b[1],
		Volume:     b[2],
		Pan:        int8(b[3]),
		Reverb:     b[4],
		CoarseTune: b[5],
		FineTune:   b[6],
		Pad07:      b[7],
	}
	return nil
}
