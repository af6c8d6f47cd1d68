package engine

import (
	"math"
	"sync/atomic"
	"testing"
)

func TestCutoffControlMapping(t *testing.T) {
	if got := cutoffControlToHz(0); got != cutoffCenterHz {
		t.Errorf("expected center %v Hz, got %v", cutoffCenterHz, got)
	}
	if got := cutoffControlToHz(1); math.Abs(got-2400) > 1e-9 {
		t.Errorf("expected one octave up, got %v", got)
	}
	if got := cutoffControlToHz(-4); got < minCutoffHz {
		t.Errorf("expected clamp at %v Hz, got %v", minCutoffHz, got)
	}
	if got := cutoffControlToHz(4); got > maxCutoffHz {
		t.Errorf("expected clamp at %v Hz, got %v", maxCutoffHz, got)
	}
	prev := cutoffControlToHz(-4)
	for c := -3.9; c <= 4; c += 0.1 {
		cur := cutoffControlToHz(c)
		if cur < prev {
			t.Fatalf("cutoff map decreased at %v", c)
		}
		prev = cur
	}
}

func TestResonanceControlMapping(t *testing.T) {
	if got := resonanceControlToDevice(0); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := resonanceControlToDevice(5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5 at midpoint, got %v", got)
	}
	if got := resonanceControlToDevice(10); math.Abs(got-0.97) > 1e-9 {
		t.Errorf("expected 0.97 at max, got %v", got)
	}
	// the two curve segments must join without a jump
	lo, hi := resonanceControlToDevice(4.999), resonanceControlToDevice(5.001)
	if hi-lo > 0.01 {
		t.Errorf("discontinuity at segment join: %v -> %v", lo, hi)
	}
	prev := resonanceControlToDevice(0)
	for c := 0.1; c <= 10; c += 0.1 {
		cur := resonanceControlToDevice(c)
		if cur < prev {
			t.Fatalf("resonance map decreased at %v", c)
		}
		prev = cur
	}
}

func TestKeyTrackingFractions(t *testing.T) {
	if got := keyTrackingFraction(false, false); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := keyTrackingFraction(true, false); math.Abs(got-1.0/3) > 1e-9 {
		t.Errorf("expected 1/3, got %v", got)
	}
	if got := keyTrackingFraction(false, true); math.Abs(got-2.0/3) > 1e-9 {
		t.Errorf("expected 2/3, got %v", got)
	}
	if got := keyTrackingFraction(true, true); math.Abs(got-1) > 1e-9 {
		t.Errorf("expected full tracking, got %v", got)
	}
}

func TestKeyTrackingRatio(t *testing.T) {
	for note := 0; note <= 127; note += 13 {
		if got := keyTrackingRatio(0, note); got != 1 {
			t.Errorf("expected no tracking with switches off at note %v, got %v", note, got)
		}
	}
	if got := keyTrackingRatio(1, middleC+12); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected full tracking to double per octave, got %v", got)
	}
	if got := keyTrackingRatio(1, middleC-12); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected full tracking to halve per octave, got %v", got)
	}
	if got := keyTrackingRatio(1.0/3, middleC+12); math.Abs(got-math.Pow(2, 1.0/3)) > 1e-9 {
		t.Errorf("expected third-octave tracking, got %v", got)
	}
}

func TestAdapterBypassPassesThrough(t *testing.T) {
	a := newFilterAdapter()
	for _, v := range []float64{-0.5, 0, 0.3, 1} {
		if got := a.step(v); got != v {
			t.Errorf("expected pass-through of %v, got %v", v, got)
		}
	}
}

func TestAdapterAbsorbsStateBeforeAttach(t *testing.T) {
	a := newFilterAdapter()
	a.SetCutoff(2000)
	a.SetResonance(0.3)
	a.drain(0)
	if a.baseCutoffHz != 2000 || a.resonance != 0.3 {
		t.Fatalf("expected cached state, got %v / %v", a.baseCutoffHz, a.resonance)
	}
	k, err := loadLadderKernel(sampleRate)
	expectNoError(t, err)
	a.attach(k)
	if k.targetCutoff != 2000 {
		t.Errorf("expected replayed cutoff 2000, got %v", k.targetCutoff)
	}
	if k.targetResonance != 0.3 {
		t.Errorf("expected replayed resonance 0.3, got %v", k.targetResonance)
	}
}

func TestAdapterDisposedSwallowsMessages(t *testing.T) {
	a := newFilterAdapter()
	a.dispose()
	a.SetCutoff(500)
	a.TriggerEnvelopeAttack(500, 1000, 0.1, 0.1, 0.5)
	if len(a.queue) != 0 {
		t.Errorf("expected no queued messages after dispose, got %v", len(a.queue))
	}
	if got := a.step(0.4); got != 0.4 {
		t.Errorf("expected pass-through after dispose, got %v", got)
	}
}

func TestAdapterModulationOffsetsCutoff(t *testing.T) {
	a := newFilterAdapter()
	a.SetCutoff(1000)
	a.PushModulationValue(1) // one octave up
	a.drain(0)
	if got := a.effectiveCutoff(); math.Abs(got-2000) > 1e-9 {
		t.Errorf("expected 2000 Hz effective cutoff, got %v", got)
	}
	a.PushModulationValue(-1)
	a.drain(0)
	if got := a.effectiveCutoff(); math.Abs(got-500) > 1e-9 {
		t.Errorf("expected 500 Hz effective cutoff, got %v", got)
	}
}

func TestAdapterNonFiniteMessageKeepsLastValue(t *testing.T) {
	a := newFilterAdapter()
	a.SetCutoff(900)
	a.drain(0)
	a.SetCutoff(math.NaN())
	a.PushModulationValue(math.Inf(1))
	a.drain(0)
	if a.baseCutoffHz != 900 {
		t.Errorf("expected cutoff kept at 900, got %v", a.baseCutoffHz)
	}
	if a.modOctaves != 0 {
		t.Errorf("expected modulation kept at 0, got %v", a.modOctaves)
	}
}

func TestContourZeroSchedulesNoKernelEnvelope(t *testing.T) {
	st := newTestState(t, true)
	st.params.filter.contourAmount = 0
	st.voices.press(60, st.graph, st.params)
	st.voices.release(60, st.graph, st.params)
	if got := atomic.LoadInt64(&st.graph.adapter.envAttacks); got != 0 {
		t.Errorf("expected no kernel envelope traffic, got %v attacks", got)
	}
}

func TestContourSchedulesKernelEnvelope(t *testing.T) {
	st := newTestState(t, true)
	st.params.filter.contourAmount = 5
	st.voices.press(60, st.graph, st.params)
	if got := atomic.LoadInt64(&st.graph.adapter.envAttacks); got != 1 {
		t.Fatalf("expected one kernel attack, got %v", got)
	}
	runSamples(st, samplesPerCycle)
	if st.graph.adapter.kernel.envPhase == 0 {
		t.Errorf("expected kernel contour to be in flight")
	}
}

func TestKernelRejectsUnsupportedRate(t *testing.T) {
	if _, err := loadLadderKernel(1000); err == nil {
		t.Errorf("expected error for unsupported rate")
	}
	if _, err := loadLadderKernel(400000); err == nil {
		t.Errorf("expected error for unsupported rate")
	}
}

func TestKernelOutputStaysFinite(t *testing.T) {
	k, err := loadLadderKernel(sampleRate)
	expectNoError(t, err)
	k.setCutoff(4000)
	k.setResonance(0.9)
	for i := 0; i < 20; i++ {
		k.smoothParams()
	}
	for i := 0; i < 4800; i++ {
		in := math.Sin(2 * math.Pi * 220 * float64(i) / sampleRate)
		out := k.process(in)
		if math.IsNaN(out) || math.IsInf(out, 0) || math.Abs(out) > 4 {
			t.Fatalf("kernel output diverged at %v: %v", i, out)
		}
	}
}

func TestKernelLowpassAttenuatesHighBand(t *testing.T) {
	k, err := loadLadderKernel(sampleRate)
	expectNoError(t, err)
	k.setCutoff(200)
	k.setResonance(0)
	for i := 0; i < 100; i++ {
		k.smoothParams()
	}
	var inPower, outPower float64
	for i := 0; i < 9600; i++ {
		in := math.Sin(2 * math.Pi * 8000 * float64(i) / sampleRate)
		out := k.process(in)
		if i > 4800 { // skip the transient
			inPower += in * in
			outPower += out * out
		}
	}
	if outPower > inPower/10 {
		t.Errorf("expected strong attenuation at 8 kHz with 200 Hz cutoff: in %v out %v", inPower, outPower)
	}
}

func TestKernelEnvelopeSweepsTowardPeak(t *testing.T) {
	k, err := loadLadderKernel(sampleRate)
	expectNoError(t, err)
	k.setCutoff(500)
	k.updateEnvelope(0)
	k.setEnvelopeDecayTime(0.5)
	k.setEnvelopeSustainLevel(0.5)
	k.setEnvelopeAttack(500, 4000, 0.1)
	k.updateEnvelope(0.05)
	mid := k.envCutoff
	if mid <= 500 || mid >= 4000 {
		t.Errorf("expected cutoff mid-sweep, got %v", mid)
	}
	k.updateEnvelope(0.1)
	if k.envPhase != 2 {
		t.Errorf("expected decay phase after attack time, got %v", k.envPhase)
	}
	k.setEnvelopeRelease(500, 0.05)
	k.updateEnvelope(0.2)
	if math.Abs(k.envCutoff-500) > 1e-6 {
		t.Errorf("expected release back to base cutoff, got %v", k.envCutoff)
	}
}
