package engine

// ----- Note Stack ----- //

// noteStack records held notes in press order, duplicate-free. The top (most
// recent) entry is the note that should be sounding.
type noteStack struct {
	notes []int
}

func (s *noteStack) push(note int) {
	s.remove(note)
	s.notes = append(s.notes, note)
}

func (s *noteStack) remove(note int) {
	removed := 0
	for i := 0; i < len(s.notes); i++ {
		if s.notes[i] == note {
			removed++
		} else {
			s.notes[i-removed] = s.notes[i]
		}
	}
	s.notes = s.notes[:len(s.notes)-removed]
}

func (s *noteStack) top() (int, bool) {
	if len(s.notes) == 0 {
		return 0, false
	}
	return s.notes[len(s.notes)-1], true
}

func (s *noteStack) empty() bool {
	return len(s.notes) == 0
}

// ----- Voice Manager ----- //

// voiceManager is the monophonic last-note-priority brain. Pressing while a
// note is sounding moves only the pitch layer (no envelope retrigger, no
// click); releasing the top note re-pitches to the next most recent held
// note, the way the hardware keyboard behaves.
type voiceManager struct {
	stack    noteStack
	sounding int
	active   bool
}

func newVoiceManager() *voiceManager {
	return &voiceManager{}
}

func (vm *voiceManager) press(note int, g *signalGraph, p *params) {
	if note < 0 || note > 127 {
		return
	}
	vm.stack.push(note)
	if vm.active {
		if note != vm.sounding {
			vm.sounding = note
			g.bank.setNote(p, note)
			g.setTrackedNote(note, p)
		}
		return
	}
	vm.sounding = note
	vm.active = true
	g.bank.trigger(p, note)
	g.setTrackedNote(note, p)
	g.gateOn(p)
}

func (vm *voiceManager) release(note int, g *signalGraph, p *params) {
	vm.stack.remove(note)
	if !vm.active {
		return
	}
	if top, ok := vm.stack.top(); ok {
		if top != vm.sounding {
			vm.sounding = top
			g.bank.setNote(p, top)
			g.setTrackedNote(top, p)
		}
		return
	}
	vm.active = false
	g.gateOff(p)
}

// soundingNote reports the currently sounding note, if any.
func (vm *voiceManager) soundingNote() (int, bool) {
	return vm.sounding, vm.active
}
