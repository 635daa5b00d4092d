package bgm

import "testing"

func TestPolyphonyFromRaw(t *testing.T) {
	tests := []struct {
		priority, parent uint8
		want             Polyphony
	}{
		{0, 0, Polyphony{Kind: Manual, Voices: 0}},
		{1, 0, Polyphony{Kind: Manual, Voices: 1}},
		{5, 0, Polyphony{Kind: Manual, Voices: 2}},
		{6, 0, Polyphony{Kind: Manual, Voices: 3}},
		{7, 0, Polyphony{Kind: Manual, Voices: 4}},
		{3, 0, Polyphony{Kind: Other, Priority: 3}},
		{5, 2, Polyphony{Kind: Link, Parent: 2, Priority: 5}},
	}
	for _, tt := range tests {
		got := polyphonyFromRaw(tt.priority, tt.parent)
		if got != tt.want {
			t.Fatalf("polyphonyFromRaw(%d, %d) = %+v, want %+v", tt.priority, tt.parent, got, tt.want)
		}
		priority, parent := got.raw(&CommandSeq{})
		if priority != tt.priority || parent != tt.parent {
			t.Fatalf("%+v.raw() = %d, %d, want %d, %d", got, priority, parent, tt.priority, tt.parent)
		}
	}
}

func TestPolyphonyAutomatic(t *testing.T) {
	chord := FromCommands(
		Note{Pitch: 0x90, Velocity: 1, Length: 8},
		Note{Pitch: 0x94, Velocity: 1, Length: 8},
		Note{Pitch: 0x97, Velocity: 1, Length: 8},
		End{},
	)
	tests := []struct {
		p    Polyphony
		want uint8
	}{
		{Polyphony{}, 6},
		{Polyphony{Kind: Automatic}, 6},
		{Polyphony{Kind: Manual, Voices: 9}, 7},
		{Polyphony{Kind: Link, Parent: 1}, linkPriority},
	}
	for _, tt := range tests {
		if got, _ := tt.p.raw(&chord); got != tt.want {
			t.Fatalf("%+v.raw() = %d, want %d", tt.p, got, tt.want)
		}
	}
}
