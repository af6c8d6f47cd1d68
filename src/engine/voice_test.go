package engine

import (
	"math"
	"testing"
)

func TestNoteStackKeepsPressOrder(t *testing.T) {
	var s noteStack
	s.push(60)
	s.push(64)
	s.push(67)
	if top, ok := s.top(); !ok || top != 67 {
		t.Errorf("expected top 67, got %v (%v)", top, ok)
	}
	s.remove(64)
	if top, ok := s.top(); !ok || top != 67 {
		t.Errorf("expected top 67 after removing inner note, got %v", top)
	}
	s.remove(67)
	if top, ok := s.top(); !ok || top != 60 {
		t.Errorf("expected top 60, got %v", top)
	}
	s.remove(60)
	if !s.empty() {
		t.Errorf("expected empty stack")
	}
}

func TestNoteStackRepressMovesNoteToTop(t *testing.T) {
	var s noteStack
	s.push(60)
	s.push(64)
	s.push(60)
	if len(s.notes) != 2 {
		t.Errorf("expected 2 notes, got %v", len(s.notes))
	}
	if top, _ := s.top(); top != 60 {
		t.Errorf("expected repressed 60 on top, got %v", top)
	}
}

func TestLastNotePriority(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params

	vm.press(60, g, p)
	if note, ok := vm.soundingNote(); !ok || note != 60 {
		t.Fatalf("expected 60 sounding, got %v (%v)", note, ok)
	}
	vm.press(62, g, p)
	if note, _ := vm.soundingNote(); note != 62 {
		t.Errorf("expected newest note 62 to take over, got %v", note)
	}
	if got, want := g.bank.oscs[0].freq, oscFreq(p.osc[0], 62); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected osc freq %v, got %v", want, got)
	}

	// releasing the newest note falls back to the still-held one
	vm.release(62, g, p)
	if note, ok := vm.soundingNote(); !ok || note != 60 {
		t.Errorf("expected fallback to 60, got %v (%v)", note, ok)
	}
	if got, want := g.bank.oscs[0].freq, oscFreq(p.osc[0], 60); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected osc freq %v, got %v", want, got)
	}

	vm.release(60, g, p)
	if _, ok := vm.soundingNote(); ok {
		t.Errorf("expected no sounding note after all keys released")
	}
}

func TestReleaseOfInnerNoteKeepsPitch(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	vm.press(60, g, p)
	vm.press(64, g, p)
	vm.release(60, g, p)
	if note, _ := vm.soundingNote(); note != 64 {
		t.Errorf("expected 64 to keep sounding, got %v", note)
	}
}

func TestLegatoPressDoesNotRetriggerEnvelope(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	vm.press(60, g, p)
	runSamples(st, sampleRate) // well past attack+decay
	if g.loudness.stage != envSustain {
		t.Fatalf("expected sustain stage, got %v", g.loudness.stage)
	}
	vm.press(62, g, p)
	if g.loudness.stage != envSustain {
		t.Errorf("expected envelope untouched by legato press, got stage %v", g.loudness.stage)
	}
	if !g.bank.running {
		t.Errorf("expected oscillators still running")
	}
}

func TestOutOfRangeNoteIgnored(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	vm.press(-1, g, p)
	vm.press(128, g, p)
	if _, ok := vm.soundingNote(); ok {
		t.Errorf("expected out-of-range presses to be ignored")
	}
}

func TestQuickReleaseStopsVoice(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	p.decaySwitch = false

	vm.press(60, g, p)
	runSamples(st, msSamples(100))
	if !g.bank.running {
		t.Fatalf("expected running voice")
	}
	vm.release(60, g, p)
	runSamples(st, msSamples(15))
	if g.bank.running {
		t.Errorf("expected voice stopped shortly after release")
	}
}

func TestDecaySwitchDefersVoiceStop(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	p.decaySwitch = true
	p.loudness.decay = 6 // ~1 s release

	vm.press(60, g, p)
	runSamples(st, msSamples(100))
	vm.release(60, g, p)

	runSamples(st, msSamples(500))
	if !g.bank.running {
		t.Errorf("expected voice still decaying 500ms after release")
	}
	runSamples(st, msSamples(600))
	if g.bank.running {
		t.Errorf("expected voice stopped after the full decay time")
	}
}

func TestGlideMovesPitchGradually(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	p.glideOn = true
	p.glideAmount = 5

	vm.press(60, g, p)
	runSamples(st, msSamples(50))
	from := oscFreq(p.osc[0], 60)
	target := oscFreq(p.osc[0], 72)

	vm.press(72, g, p)
	runSamples(st, msSamples(50))
	mid := g.bank.oscs[0].freq
	if mid <= from || mid >= target {
		t.Errorf("expected freq strictly between %v and %v mid-glide, got %v", from, target, mid)
	}
	runSamples(st, 2*sampleRate)
	if got := g.bank.oscs[0].freq; math.Abs(got-target) > 1e-6 {
		t.Errorf("expected glide to settle at %v, got %v", target, got)
	}
}

func TestGlideOffJumpsImmediately(t *testing.T) {
	st := newTestState(t, false)
	vm, g, p := st.voices, st.graph, st.params
	p.glideOn = false
	vm.press(60, g, p)
	vm.press(72, g, p)
	if got, want := g.bank.oscs[0].freq, oscFreq(p.osc[0], 72); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected immediate jump to %v, got %v", want, got)
	}
}
