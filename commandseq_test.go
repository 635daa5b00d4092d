package bgm_test

import (
	"reflect"
	"testing"

	"github.com/bgmkit/bgm"
)

func note(pitch uint8, length uint16) bgm.Note {
	return bgm.Note{Pitch: pitch, Velocity: 100, Length: length}
}

func TestInsertStart(t *testing.T) {
	tests := []struct {
		name  string
		input []bgm.Command
		time  int
		want  []bgm.Command
	}{
		{"empty", nil, 0, []bgm.Command{bgm.MasterTempo{BPM: 120}}},
		{"padding", nil, 10, []bgm.Command{bgm.Delay{Ticks: 10}, bgm.MasterTempo{BPM: 120}}},
		{"before group",
			[]bgm.Command{note(0x90, 1), bgm.Delay{Ticks: 10}},
			0,
			[]bgm.Command{bgm.MasterTempo{BPM: 120}, note(0x90, 1), bgm.Delay{Ticks: 10}}},
		{"at delay boundary",
			[]bgm.Command{bgm.Delay{Ticks: 5}, note(0x90, 1), bgm.End{}},
			5,
			[]bgm.Command{bgm.Delay{Ticks: 5}, bgm.MasterTempo{BPM: 120}, note(0x90, 1), bgm.End{}}},
		{"splits delay",
			[]bgm.Command{bgm.Delay{Ticks: 10}, bgm.End{}},
			4,
			[]bgm.Command{bgm.Delay{Ticks: 4}, bgm.MasterTempo{BPM: 120}, bgm.Delay{Ticks: 6}, bgm.End{}}},
		{"past the end",
			[]bgm.Command{bgm.Delay{Ticks: 3}},
			5,
			[]bgm.Command{bgm.Delay{Ticks: 3}, bgm.Delay{Ticks: 2}, bgm.MasterTempo{BPM: 120}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bgm.FromCommands(tt.input...)
			s.InsertStart(tt.time, bgm.MasterTempo{BPM: 120})
			if got := s.Commands(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsertEnd(t *testing.T) {
	tests := []struct {
		name  string
		input []bgm.Command
		time  int
		want  []bgm.Command
	}{
		{"after group",
			[]bgm.Command{note(0x90, 1), bgm.Delay{Ticks: 10}, bgm.End{}},
			0,
			[]bgm.Command{note(0x90, 1), bgm.MasterVolume{Volume: 1}, bgm.Delay{Ticks: 10}, bgm.End{}}},
		{"before end",
			[]bgm.Command{bgm.Delay{Ticks: 10}, note(0x90, 1), bgm.End{}},
			10,
			[]bgm.Command{bgm.Delay{Ticks: 10}, note(0x90, 1), bgm.MasterVolume{Volume: 1}, bgm.End{}}},
		{"inside delay",
			[]bgm.Command{bgm.Delay{Ticks: 10}, bgm.End{}},
			3,
			[]bgm.Command{bgm.Delay{Ticks: 3}, bgm.MasterVolume{Volume: 1}, bgm.Delay{Ticks: 7}, bgm.End{}}},
		{"no terminator",
			[]bgm.Command{bgm.Delay{Ticks: 2}, note(0x90, 1)},
			2,
			[]bgm.Command{bgm.Delay{Ticks: 2}, note(0x90, 1), bgm.MasterVolume{Volume: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bgm.FromCommands(tt.input...)
			s.InsertEnd(tt.time, bgm.MasterVolume{Volume: 1})
			if got := s.Commands(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsertKeepsEventTimes(t *testing.T) {
	s := bgm.FromCommands(bgm.Delay{Ticks: 4}, note(0x90, 1), bgm.Delay{Ticks: 8}, note(0x91, 1), bgm.End{})
	before := map[bgm.EventID]int{}
	for time, e := range s.TimeEvents() {
		before[e.ID] = time
	}
	s.InsertStart(6, bgm.MasterTempo{BPM: 90})
	s.InsertEnd(12, bgm.MasterTempo{BPM: 60})
	s.InsertStart(20, bgm.MasterTempo{BPM: 30})
	for time, e := range s.TimeEvents() {
		if want, ok := before[e.ID]; ok && want != time {
			t.Fatalf("event %v moved from %d to %d", e, want, time)
		}
	}
}

func TestAtTime(t *testing.T) {
	s := bgm.FromCommands(note(0x90, 3), bgm.Delay{Ticks: 2}, note(0x91, 3), bgm.MasterVolume{Volume: 5}, bgm.Delay{Ticks: 1}, bgm.End{})
	tests := []struct {
		time int
		want []bgm.Command
	}{
		{0, []bgm.Command{note(0x90, 3), bgm.Delay{Ticks: 2}}},
		{1, nil},
		{2, []bgm.Command{note(0x91, 3), bgm.MasterVolume{Volume: 5}, bgm.Delay{Ticks: 1}}},
		{3, []bgm.Command{bgm.End{}}},
		{4, nil},
	}
	for _, tt := range tests {
		var got []bgm.Command
		for _, e := range s.AtTime(tt.time) {
			got = append(got, e.Command)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("AtTime(%d) = %v, want %v", tt.time, got, tt.want)
		}
	}
}

func TestTimes(t *testing.T) {
	tests := []struct {
		name         string
		input        []bgm.Command
		lenTime      int
		playbackTime int
		polyphony    int
		lo, hi       int
	}{
		{"empty", nil, 0, 0, 0, 0, 0},
		{"chord", []bgm.Command{note(0x90, 10), note(0x94, 10), note(0x97, 5), bgm.Delay{Ticks: 4}, bgm.End{}}, 4, 10, 3, 0x90, 0x98},
		{"legato", []bgm.Command{note(0x90, 4), bgm.Delay{Ticks: 4}, note(0x92, 4), bgm.Delay{Ticks: 4}, bgm.End{}}, 8, 8, 1, 0x90, 0x93},
		{"overlap", []bgm.Command{note(0x90, 5), bgm.Delay{Ticks: 4}, note(0x90, 4), bgm.Delay{Ticks: 4}, bgm.End{}}, 8, 8, 2, 0x90, 0x91},
		{"zero length", []bgm.Command{note(0x90, 0), note(0x91, 0), bgm.End{}}, 0, 0, 0, 0x90, 0x92},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bgm.FromCommands(tt.input...)
			if got := s.LenTime(); got != tt.lenTime {
				t.Fatalf("LenTime() = %d, want %d", got, tt.lenTime)
			}
			if got := s.PlaybackTime(); got != tt.playbackTime {
				t.Fatalf("PlaybackTime() = %d, want %d", got, tt.playbackTime)
			}
			if got := s.MaxPolyphony(); got != tt.polyphony {
				t.Fatalf("MaxPolyphony() = %d, want %d", got, tt.polyphony)
			}
			if lo, hi := s.PitchRange(); lo != tt.lo || hi != tt.hi {
				t.Fatalf("PitchRange() = [%#x, %#x), want [%#x, %#x)", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestShrink(t *testing.T) {
	s := bgm.FromCommands(bgm.Delay{}, note(0x90, 0), note(0x91, 20), bgm.Delay{Ticks: 3}, bgm.MasterTempo{BPM: 100}, bgm.Delay{}, bgm.End{})
	playback := s.PlaybackTime()
	s.Shrink()
	want := []bgm.Command{note(0x91, 20), bgm.Delay{Ticks: 3}, bgm.MasterTempo{BPM: 100}, bgm.End{}}
	if got := s.Commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := s.PlaybackTime(); got != playback {
		t.Fatalf("PlaybackTime() changed from %d to %d", playback, got)
	}
}

func TestSplitAt(t *testing.T) {
	tests := []struct {
		name        string
		time        int
		left, right []bgm.Command
	}{
		{"middle", 6,
			[]bgm.Command{note(0x90, 4), bgm.Delay{Ticks: 6}, bgm.End{}},
			[]bgm.Command{bgm.Delay{Ticks: 4}, note(0x91, 4), bgm.End{}}},
		{"boundary", 10,
			[]bgm.Command{note(0x90, 4), bgm.Delay{Ticks: 10}, bgm.End{}},
			[]bgm.Command{note(0x91, 4), bgm.End{}}},
		{"start", 0,
			[]bgm.Command{bgm.End{}},
			[]bgm.Command{note(0x90, 4), bgm.Delay{Ticks: 10}, note(0x91, 4), bgm.End{}}},
		{"past the end", 20,
			[]bgm.Command{note(0x90, 4), bgm.Delay{Ticks: 10}, note(0x91, 4), bgm.End{}, bgm.End{}},
			nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bgm.FromCommands(note(0x90, 4), bgm.Delay{Ticks: 10}, note(0x91, 4), bgm.End{})
			right := s.SplitAt(tt.time)
			if got := s.Commands(); !reflect.DeepEqual(got, tt.left) {
				t.Fatalf("left = %v, want %v", got, tt.left)
			}
			got := right.Commands()
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.right) {
				t.Fatalf("right = %v, want %v", got, tt.right)
			}
		})
	}
}

func TestClearCommand(t *testing.T) {
	s := bgm.FromCommands(note(0x90, 4), bgm.Delay{Ticks: 10}, bgm.End{})
	ids := []bgm.EventID{s.Events()[0].ID, s.Events()[1].ID}
	s.ClearCommand(0)
	s.ClearCommand(5)
	want := []bgm.Command{bgm.Delay{}, bgm.Delay{Ticks: 10}, bgm.End{}}
	if got := s.Commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if s.Index(ids[0]) != 0 || s.Index(ids[1]) != 1 {
		t.Fatal("ClearCommand changed event identity")
	}
}

func TestIsEmptyAndClone(t *testing.T) {
	var s bgm.CommandSeq
	if !s.IsEmpty() {
		t.Fatal("zero sequence should be empty")
	}
	s.Push(bgm.End{})
	if !s.IsEmpty() {
		t.Fatal("sequence holding only End should be empty")
	}
	s.InsertStart(0, note(0x90, 1))
	if s.IsEmpty() {
		t.Fatal("sequence with a note should not be empty")
	}
	c := s.Clone()
	if !reflect.DeepEqual(c.Commands(), s.Commands()) {
		t.Fatalf("clone = %v, want %v", c.Commands(), s.Commands())
	}
	if c.Events()[0].ID == s.Events()[0].ID {
		t.Fatal("clone should get fresh event ids")
	}
}
