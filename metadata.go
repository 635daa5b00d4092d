package bgm

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// metadataMagic precedes the editor metadata appended after the song.
	metadataMagic    = "MAMAR"
	metadataMagicLen = 8
)

// metadata is editor-only information stored after the end of the song,
// serialized with MessagePack. It never affects playback.
type metadata struct {
	_msgpack struct{} `msgpack:",as_array"`

	// TrackNames maps a track list's file position to the names of its
	// tracks, master track excluded.
	TrackNames map[uint16][]string `msgpack:"track_names"`
}

func (m *metadata) addTrackName(trackListPos uint16, name string) {
	if m.TrackNames == nil {
		m.TrackNames = map[uint16][]string{}
	}
	m.TrackNames[trackListPos] = append(m.TrackNames[trackListPos], name)
}

// hasData reports whether any track name is non-empty.
func (m *metadata) hasData() bool {
	for _, names := range m.TrackNames {
		for _, name := range names {
			if name != "" {
				return true
			}
		}
	}
	return false
}

// apply copies track names onto the decoded track lists.
func (m *metadata) apply(b *Bgm) {
	for _, tl := range b.TrackLists {
		if tl.Pos == nil {
			continue
		}
		names, ok := m.TrackNames[uint16(*tl.Pos)]
		if !ok {
			continue
		}
		for i, name := range names {
			if i+1 >= NumTracks {
				break
			}
			tl.Tracks[i+1].Name = name
		}
	}
}

func (m *metadata) encode(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	return enc.Encode(m)
}

func decodeMetadata(r io.Reader) (*metadata, error) {
	var m metadata
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
