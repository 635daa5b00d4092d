package bgm

import (
	"maps"
	"slices"
)

// InstrumentID selects a sound of the sound bank: the upper nibble of
// Instrument.Bank and the patch number.
type InstrumentID struct {
	Bank  uint8
	Patch uint8
}

// instrumentsByName holds the sounds identified so far.
var instrumentsByName = map[string]InstrumentID{
	"Funny Marimba":                       {3, 0x01},
	"Marimba":                             {3, 0x02},
	"Huff n' Puff Synth [Lead 4 (chiff)]": {3, 0x0B},
	"String Ensemble":                     {3, 0x18},
	"Synth String 1":                      {3, 0x19},
	"Synth String 2":                      {3, 0x1A},
	"Synth Flute (?)":                     {3, 0x1B},
	"Synth Flute":                         {3, 0x2E},
	"Overdriven Guitar":                   {3, 0x44},
	"Kalimba":                             {3, 0x46},
	"Flute 2":                             {3, 0x46},
	"Percussive(?) Organ":                 {3, 0x4D},
	"Drawbar Organ A":                     {3, 0x4E},
	"Drawbar Organ B":                     {3, 0x4F},
	"Guitar Harmonics":                    {3, 0x52},
	"Percussive Organ":                    {3, 0x54},
	"Sitar 3":                             {3, 0x55},
	"Muted Trumpet":                       {3, 0x58},
	"Choir A [Lead 6 (voice)]":            {3, 0x59},
	"Choir B":                             {3, 0x5A},
	"Choir C":                             {3, 0x5B},
	"Rock Organ":                          {3, 0x63},
	"Muted Synth Bass":                    {3, 0x65},
	"Synth Bass 1":                        {3, 0x69},
	"Fat Synth Brass":                     {3, 0x6A},
	"Synth Brass 2":                       {3, 0x6B},
	"Whistle":                             {3, 0x6C},
	"Blown Bottle":                        {3, 0x6E},
	"Shooting Star Pad":                   {3, 0x70},
	"Music Box (weird)":                   {3, 0x79},
	"Alien Xylophone":                     {3, 0x7A},
	"Glockenspiel 1":                      {3, 0x80},
	"Glockenspiel 2":                      {3, 0x81},
	"Dulcimer":                            {3, 0x83},
	"Sitar 2":                             {3, 0x86},
	"Flute":                               {3, 0x8A},
	"Distortion Strings":                  {3, 0x8D},
	"Mosquito":                            {3, 0x98},
	"Cat [Lead 8 (bass + lead)]":          {3, 0x99},
	"Music Box":                           {3, 0xA1},
	"Synth Voice":                         {3, 0xA5},
	"Woodblock":                           {3, 0xE4},
}

// instrumentsByID is the reverse of instrumentsByName. Where two names share
// a sound, the one sorting last wins.
var instrumentsByID = func() map[InstrumentID]string {
	m := make(map[InstrumentID]string, len(instrumentsByName))
	for _, name := range slices.Sorted(maps.Keys(instrumentsByName)) {
		m[instrumentsByName[name]] = name
	}
	return m
}()

// InstrumentName returns the name of a known sound.
func InstrumentName(id InstrumentID) (string, bool) {
	name, ok := instrumentsByID[id]
	return name, ok
}

// InstrumentByName looks up a sound by its name.
func InstrumentByName(name string) (InstrumentID, bool) {
	id, ok := instrumentsByName[name]
	return id, ok
}

// ID returns the sound the instrument plays.
func (i Instrument) ID() InstrumentID {
	return InstrumentID{Bank: i.Bank >> 4, Patch: i.Patch}
}
