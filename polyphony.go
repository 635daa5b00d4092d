package bgm

type (
	// PolyphonyKind selects how the engine allocates voices for a track.
	PolyphonyKind string

	// Polyphony is the voice allocation of a track. Voices is used by
	// Manual, Parent by Link and Priority by Other; Automatic, and the zero
	// value, derive the voice count from the track's notes when encoding.
	// A decoded Link keeps its raw Priority so it is written back unchanged.
	Polyphony struct {
		Kind     PolyphonyKind
		Voices   uint8 `yaml:",omitempty"`
		Parent   uint8 `yaml:",omitempty"`
		Priority uint8 `yaml:",omitempty"`
	}
)

const (
	Automatic PolyphonyKind = "automatic"
	Manual    PolyphonyKind = "manual"
	// Link shares the voices of track Parent.
	Link  PolyphonyKind = "link"
	Other PolyphonyKind = "other"
)

// linkPriority is the raw selector written for linked tracks; the only
// original song using links stores this value.
const linkPriority = 5

// voicesToPriority maps a voice count to the raw 3-bit selector that makes
// the engine allocate that many voices.
func voicesToPriority(voices int) uint8 {
	switch voices {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 5
	case 3:
		return 6
	}
	return 7
}

// polyphonyFromRaw converts the selector and parent bits of the track flags.
func polyphonyFromRaw(priority, parent uint8) Polyphony {
	if parent != 0 {
		return Polyphony{Kind: Link, Parent: parent, Priority: priority}
	}
	switch priority {
	case 0, 1:
		return Polyphony{Kind: Manual, Voices: priority}
	case 5, 6, 7:
		return Polyphony{Kind: Manual, Voices: priority - 3}
	}
	return Polyphony{Kind: Other, Priority: priority}
}

// raw returns the selector and parent bits to store for a track with the
// given commands.
func (p Polyphony) raw(commands *CommandSeq) (priority, parent uint8) {
	switch p.Kind {
	case Manual:
		return voicesToPriority(int(p.Voices)), 0
	case Link:
		if p.Priority != 0 {
			return p.Priority & 7, p.Parent & 0xF
		}
		return linkPriority, p.Parent & 0xF
	case Other:
		return p.Priority & 7, 0
	}
	return voicesToPriority(commands.MaxPolyphony()), 0
}
