package bgm

import (
	"iter"
	"slices"
)

// CommandSeq is the command stream of one track. Events are addressed by
// relative time: time starts at zero and advances only at Delay commands,
// so every event executes at the sum of the delays before it.
//
// The zero value is an empty sequence ready to use.
type CommandSeq struct {
	events []Event
}

// delayLookup is the result of lookupDelay. When found is true, index is the
// Delay that makes time begin. Otherwise index is where an event executing
// at time would be inserted and timeAtIndex is the time at that index.
type delayLookup struct {
	found       bool
	index       int
	timeAtIndex int
}

// FromCommands builds a sequence holding cmds in order.
func FromCommands(cmds ...Command) CommandSeq {
	var s CommandSeq
	s.InsertManyStart(0, cmds...)
	return s
}

// Len returns the number of events, markers and no-ops included.
func (s *CommandSeq) Len() int {
	return len(s.events)
}

// IsEmpty reports whether the sequence holds nothing to encode: no events,
// or only a terminating End.
func (s *CommandSeq) IsEmpty() bool {
	switch len(s.events) {
	case 0:
		return true
	case 1:
		_, ok := s.events[0].Command.(End)
		return ok
	}
	return false
}

// Events returns the events in order. The slice is owned by the sequence;
// modify commands in place but do not append to it.
func (s *CommandSeq) Events() []Event {
	return s.events
}

// Commands returns a copy of the commands in order, without event ids.
func (s *CommandSeq) Commands() []Command {
	ret := make([]Command, len(s.events))
	for i, e := range s.events {
		ret[i] = e.Command
	}
	return ret
}

// Index returns the position of the event with the given id, or -1.
func (s *CommandSeq) Index(id EventID) int {
	return slices.IndexFunc(s.events, func(e Event) bool { return e.ID == id })
}

// Push appends commands to the end of the sequence, regardless of time.
func (s *CommandSeq) Push(cmds ...Command) {
	for _, c := range cmds {
		s.events = append(s.events, NewEvent(c))
	}
}

// Clone returns a deep copy whose events have fresh ids.
func (s *CommandSeq) Clone() CommandSeq {
	var ret CommandSeq
	ret.Push(s.Commands()...)
	return ret
}

func (s *CommandSeq) lookupDelay(time int) delayLookup {
	if time <= 0 {
		return delayLookup{}
	}
	current := 0
	for i, e := range s.events {
		d, ok := e.Command.(Delay)
		if !ok {
			continue
		}
		switch next := current + d.Ticks; {
		case next == time:
			return delayLookup{found: true, index: i}
		case next > time:
			return delayLookup{index: i, timeAtIndex: current}
		}
		current += d.Ticks
	}
	return delayLookup{index: len(s.events), timeAtIndex: current}
}

func newEvents(cmds []Command) []Event {
	ret := make([]Event, len(cmds))
	for i, c := range cmds {
		ret[i] = NewEvent(c)
	}
	return ret
}

// InsertStart inserts cmd so that it executes at time, before anything else
// already executing at time.
func (s *CommandSeq) InsertStart(time int, cmd Command) {
	s.InsertManyStart(time, cmd)
}

// InsertManyStart inserts cmds, in order, so that they execute at time
// before anything else already executing at time. Delays are split as
// needed; the time of every existing event is unchanged. Inserting past the
// end pads the sequence with a Delay.
func (s *CommandSeq) InsertManyStart(time int, cmds ...Command) {
	s.insertStart(time, cmds)
}

// insertStart returns the index of the first inserted event.
func (s *CommandSeq) insertStart(time int, cmds []Command) int {
	time = max(time, 0)
	l := s.lookupDelay(time)
	if l.found {
		at := l.index + 1
		s.events = slices.Insert(s.events, at, newEvents(cmds)...)
		return at
	}

	// time falls inside the run of delays starting at l.index (or past the
	// end): replace the run with Delay(before) cmds... Delay(after)
	runEnd := l.index
	delta := 0
	for runEnd < len(s.events) {
		d, ok := s.events[runEnd].Command.(Delay)
		if !ok {
			break
		}
		delta += d.Ticks
		runEnd++
	}
	before := time - l.timeAtIndex
	after := max(delta-before, 0)

	repl := make([]Event, 0, len(cmds)+2)
	if before > 0 {
		repl = append(repl, NewEvent(Delay{Ticks: before}))
	}
	first := l.index + len(repl)
	repl = append(repl, newEvents(cmds)...)
	if after > 0 {
		repl = append(repl, NewEvent(Delay{Ticks: after}))
	}
	s.events = slices.Replace(s.events, l.index, runEnd, repl...)
	return first
}

// InsertEnd inserts cmd so that it executes at time, after everything else
// already executing at time.
func (s *CommandSeq) InsertEnd(time int, cmd Command) {
	s.InsertManyEnd(time, cmd)
}

// InsertManyEnd inserts cmds, in order, at the end of the group of events
// executing at time: right before the next Delay or End. If nothing executes
// at time yet, it behaves like InsertManyStart.
func (s *CommandSeq) InsertManyEnd(time int, cmds ...Command) {
	time = max(time, 0)
	l := s.lookupDelay(time)
	if !l.found && l.timeAtIndex != time {
		s.insertStart(time, cmds)
		return
	}
	from := l.index
	if l.found {
		from++
	}
	at := len(s.events)
	if i := slices.IndexFunc(s.events[from:], endsGroup); i >= 0 {
		at = from + i
	}
	s.events = slices.Insert(s.events, at, newEvents(cmds)...)
}

func endsGroup(e Event) bool {
	switch e.Command.(type) {
	case Delay, End:
		return true
	}
	return false
}

// TimeEvents yields every event with the time it executes at, in order.
func (s *CommandSeq) TimeEvents() iter.Seq2[int, *Event] {
	return func(yield func(int, *Event) bool) {
		time := 0
		for i := range s.events {
			e := &s.events[i]
			if !yield(time, e) {
				return
			}
			if d, ok := e.Command.(Delay); ok {
				time += d.Ticks
			}
		}
	}
}

// TimeGroups yields runs of consecutive events that execute at the same
// time. A group ends with the Delay that moves time forward, if any.
func (s *CommandSeq) TimeGroups() iter.Seq2[int, []*Event] {
	return func(yield func(int, []*Event) bool) {
		var group []*Event
		groupTime := 0
		for time, e := range s.TimeEvents() {
			if len(group) > 0 && time != groupTime {
				if !yield(groupTime, group) {
					return
				}
				group = nil
			}
			groupTime = time
			group = append(group, e)
		}
		if len(group) > 0 {
			yield(groupTime, group)
		}
	}
}

// AtTime returns the events that execute at time, or nil.
func (s *CommandSeq) AtTime(time int) []*Event {
	for t, group := range s.TimeGroups() {
		if t == time {
			return group
		}
		if t > time {
			break
		}
	}
	return nil
}

// LenTime returns the sum of all delays, i.e. the time after the last
// event. Notes still sounding at that point are not accounted for.
func (s *CommandSeq) LenTime() int {
	time := 0
	for _, e := range s.events {
		if d, ok := e.Command.(Delay); ok {
			time += d.Ticks
		}
	}
	return time
}

// PlaybackTime returns the time at which the sequence has finished
// sounding: LenTime, extended to the end of any note that outlasts it.
func (s *CommandSeq) PlaybackTime() int {
	end := 0
	for time, e := range s.TimeEvents() {
		switch c := e.Command.(type) {
		case Delay:
			end = max(end, time+c.Ticks)
		case Note:
			end = max(end, time+int(c.Length))
		}
	}
	return end
}

// Shrink removes commands that have no effect, Delay{0} and zero-length
// notes, and releases unused capacity.
func (s *CommandSeq) Shrink() {
	s.events = slices.DeleteFunc(s.events, func(e Event) bool {
		switch c := e.Command.(type) {
		case Delay:
			return c.Ticks == 0
		case Note:
			return c.Length == 0
		}
		return false
	})
	s.events = slices.Clip(s.events)
}

// PitchRange returns the half-open range [lo, hi) of note pitches. Both are
// zero when there are no notes.
func (s *CommandSeq) PitchRange() (lo, hi int) {
	seen := false
	for _, e := range s.events {
		n, ok := e.Command.(Note)
		if !ok {
			continue
		}
		p := int(n.Pitch)
		if !seen {
			lo, hi, seen = p, p+1, true
			continue
		}
		lo = min(lo, p)
		hi = max(hi, p+1)
	}
	return lo, hi
}

// MaxPolyphony returns the largest number of notes sounding at the same
// moment. A note sounds during [start, start+length).
func (s *CommandSeq) MaxPolyphony() int {
	type edge struct {
		time  int
		delta int
	}
	var edges []edge
	for time, e := range s.TimeEvents() {
		if n, ok := e.Command.(Note); ok && n.Length > 0 {
			edges = append(edges, edge{time, 1}, edge{time + int(n.Length), -1})
		}
	}
	// a note ending at t does not overlap one starting at t
	slices.SortFunc(edges, func(a, b edge) int {
		if a.time != b.time {
			return a.time - b.time
		}
		return a.delta - b.delta
	})
	ret, current := 0, 0
	for _, e := range edges {
		current += e.delta
		ret = max(ret, current)
	}
	return ret
}

// SplitAt cuts the sequence at time. An End is inserted at time (splitting
// delays as InsertStart does); the receiver keeps everything up to and
// including it and the rest is returned. LenTime of the two parts adds up
// to the original. Splitting past the end appends End and returns an empty
// sequence.
func (s *CommandSeq) SplitAt(time int) CommandSeq {
	if time > s.LenTime() {
		s.Push(End{})
		return CommandSeq{}
	}
	at := s.insertStart(time, []Command{End{}})
	after := CommandSeq{events: slices.Clone(s.events[at+1:])}
	s.events = slices.Clip(s.events[:at+1])
	return after
}

// ClearCommand turns the event at index into a no-op Delay{0} without
// moving any other event. Out of range indices are ignored.
func (s *CommandSeq) ClearCommand(index int) {
	if index < 0 || index >= len(s.events) {
		return
	}
	s.events[index].Command = Delay{}
}
