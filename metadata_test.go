package bgm

import (
	"bytes"
	"testing"

	"github.com/Pallinder/go-randomdata"

	"github.com/bgmkit/bgm/rw"
)

func trackName() string {
	return randomdata.Adjective() + " " + randomdata.Noun()
}

func TestMetadataRoundTrip(t *testing.T) {
	b, _, _ := newSong(t, Note{Pitch: 0x90, Velocity: 100, Length: 4}, Delay{Ticks: 4}, End{})
	var want [NumTracks]string
	for _, tl := range b.TrackLists {
		for i := 1; i < NumTracks; i += 3 {
			want[i] = trackName()
			tl.Tracks[i].Name = want[i]
		}
	}
	data, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	declared := int64(readU32(data[4:]))
	metaPos := rw.Align(declared, 16)
	if !bytes.HasPrefix(data[metaPos:], []byte(metadataMagic)) {
		t.Fatalf("no metadata magic at %#x", metaPos)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for _, tl := range got.TrackLists {
		for i, track := range tl.Tracks {
			if track.Name != want[i] {
				t.Fatalf("track %d name = %q, want %q", i, track.Name, want[i])
			}
		}
	}
	again, err := Encode(got)
	if err != nil {
		t.Fatalf("second Encode failed: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Fatal("re-encoding a decoded song with names changed it")
	}
}

func TestMetadataIgnoresMasterTrackName(t *testing.T) {
	b, _, _ := newSong(t, End{})
	for _, tl := range b.TrackLists {
		tl.Tracks[0].Name = trackName()
	}
	data, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.Contains(data, []byte(metadataMagic)) {
		t.Fatal("a master track name alone should not produce metadata")
	}
}

func TestMetadataBrokenIsIgnored(t *testing.T) {
	data := buildSong(t, []byte{0x00})
	data = append(data, []byte(metadataMagic+"\x00\x00\x00\xC1\xC1\xC1")...)
	if _, err := Decode(data); err != nil {
		t.Fatalf("undecodable metadata should only warn, got %v", err)
	}
}

func TestMetadataEncoding(t *testing.T) {
	var m metadata
	m.addTrackName(0x40, "")
	if m.hasData() {
		t.Fatal("empty names should not count as data")
	}
	m.addTrackName(0x40, trackName())
	var buf rw.Buffer
	if err := m.encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeMetadata(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got.TrackNames[0x40]) != 2 || got.TrackNames[0x40][1] != m.TrackNames[0x40][1] {
		t.Fatalf("got %v, want %v", got.TrackNames, m.TrackNames)
	}
}
