package bgm_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bgmkit/bgm"
)

func sampleSong(t *testing.T) *bgm.Bgm {
	t.Helper()
	b := bgm.New()
	b.Name = "Demo"
	_, v, err := b.AddVariation()
	if err != nil {
		t.Fatal(err)
	}
	tl := bgm.NewTrackList()
	tl.Tracks[0].Disabled = false
	tl.Tracks[0].Commands = bgm.FromCommands(bgm.MasterTempo{BPM: 140}, bgm.MasterVolume{Volume: 100}, bgm.Delay{Ticks: 96}, bgm.End{})
	tl.Tracks[1] = bgm.Track{
		Name:      "Melody",
		Polyphony: bgm.Polyphony{Kind: bgm.Manual, Voices: 2},
		Commands: bgm.FromCommands(
			bgm.SetTrackVoice{Index: 1},
			bgm.SubTrackPan{Pan: -20},
			bgm.Marker{Label: "phrase"},
			bgm.Note{Pitch: 0x98, Velocity: 90, Length: 48},
			bgm.Delay{Ticks: 48},
			bgm.Note{Pitch: 0x9A, Velocity: 90, Length: 300},
			bgm.Marker{Label: "phrase end"},
			bgm.Detour{StartLabel: "phrase", EndLabel: "phrase end"},
			bgm.Delay{Ticks: 48},
			bgm.End{},
		),
	}
	tl.Tracks[2] = bgm.Track{
		Drum:      true,
		Polyphony: bgm.Polyphony{Kind: bgm.Link, Parent: 1},
		Commands:  bgm.FromCommands(bgm.Note{Pitch: 0x80, Velocity: 127, Length: 1}, bgm.Delay{Ticks: 96}, bgm.End{}),
	}
	id := b.AddTrackList(tl)
	v.Segments = []bgm.SegmentOp{
		{Kind: bgm.StartLoop, Label: 0},
		{Kind: bgm.Subseg, TrackList: id},
		{Kind: bgm.EndLoop, Label: 0, Iterations: 2},
	}
	b.Instruments = []bgm.Instrument{{Bank: 0x30, Patch: 0x8A, Volume: 100, Pan: 64, Reverb: 10}}
	b.Drums = []bgm.Drum{{Bank: 0x30, Patch: 0xE4, Volume: 80, Pan: 64}}
	return b
}

func TestYAMLRoundTrip(t *testing.T) {
	b := sampleSong(t)
	want, err := bgm.Encode(b)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	text, err := bgm.ToYAML(b)
	if err != nil {
		t.Fatalf("ToYAML failed: %v", err)
	}
	if !strings.Contains(string(text), "type: detour") {
		t.Fatalf("commands should be tagged with their type:\n%s", text)
	}
	parsed, err := bgm.FromYAML(text)
	if err != nil {
		t.Fatalf("FromYAML failed: %v", err)
	}
	if !reflect.DeepEqual(parsed.Variations[0], b.Variations[0]) {
		t.Fatalf("variation = %+v, want %+v", parsed.Variations[0], b.Variations[0])
	}
	got, err := bgm.Encode(parsed)
	if err != nil {
		t.Fatalf("Encode of parsed song failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("song changed through YAML")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	b := sampleSong(t)
	b.Unknowns = []bgm.Unknown{{Start: 0x200, End: 0x204, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}}
	want, err := bgm.Encode(b)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	text, err := bgm.ToJSON(b)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !strings.Contains(string(text), `"deadbeef"`) {
		t.Fatalf("unknown bytes should be written as hex:\n%s", text)
	}
	parsed, err := bgm.FromJSON(text)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if !reflect.DeepEqual(parsed.Unknowns, b.Unknowns) {
		t.Fatalf("unknowns = %+v, want %+v", parsed.Unknowns, b.Unknowns)
	}
	got, err := bgm.Encode(parsed)
	if err != nil {
		t.Fatalf("Encode of parsed song failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("song changed through JSON")
	}
}

func TestUnmarshalCommands(t *testing.T) {
	var track bgm.Track
	if err := yaml.Unmarshal([]byte("commands: [{type: delay, ticks: 5}, {type: detour, startlabel: a, endlabel: b}, {type: end}]"), &track); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := []bgm.Command{bgm.Delay{Ticks: 5}, bgm.Detour{StartLabel: "a", EndLabel: "b"}, bgm.End{}}
	if got := track.Commands.Commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if err := json.Unmarshal([]byte(`{"Commands": [{"type": "note", "Pitch": 144, "Velocity": 1, "Length": 2}]}`), &track); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	want = []bgm.Command{bgm.Note{Pitch: 144, Velocity: 1, Length: 2}}
	if got := track.Commands.Commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUnmarshalCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown command", "commands: [{type: sing}]"},
		{"missing type", "commands: [{ticks: 5}]"},
		{"not a list", "commands: {type: end}"},
		{"not a mapping", "commands: [end]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var track bgm.Track
			if err := yaml.Unmarshal([]byte(tt.yaml), &track); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
	var track bgm.Track
	if err := json.Unmarshal([]byte(`{"Commands": [{"type": "sing"}]}`), &track); err == nil {
		t.Fatal("expected an error for an unknown JSON command")
	}
}

func TestValidateJSON(t *testing.T) {
	b := sampleSong(t)
	text, err := bgm.ToJSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if err := bgm.ValidateJSON(text); err != nil {
		t.Fatalf("valid song rejected: %v", err)
	}
	tests := []struct {
		name string
		json string
	}{
		{"name too long", `{"Name": "toolong", "Variations": [null, null, null, null], "TrackLists": {}}`},
		{"three variations", `{"Name": "x", "Variations": [null, null, null], "TrackLists": {}}`},
		{"bad segment", `{"Name": "x", "Variations": [{"Segments": [{"Kind": "jump"}]}, null, null, null], "TrackLists": {}}`},
		{"bad key", `{"Name": "x", "Variations": [null, null, null, null], "TrackLists": {"first": {"Tracks": []}}}`},
		{"bad hex", `{"Name": "x", "Variations": [null, null, null, null], "TrackLists": {}, "Unknowns": [{"Start": 0, "End": 1, "Data": "xyz"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bgm.ValidateJSON([]byte(tt.json))
			var schemaErr *bgm.SchemaError
			if !errors.As(err, &schemaErr) || len(schemaErr.Problems) == 0 {
				t.Fatalf("expected a schema error, got %v", err)
			}
			if _, err := bgm.FromJSON([]byte(tt.json)); err == nil {
				t.Fatal("FromJSON accepted an invalid document")
			}
		})
	}
}
