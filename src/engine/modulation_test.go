package engine

import (
	"math"
	"testing"
)

func TestPinkNoiseStaysBounded(t *testing.T) {
	n := newPinkNoise(1)
	for i := 0; i < 10000; i++ {
		v := n.next()
		if v < -1 || v > 1 || math.IsNaN(v) {
			t.Fatalf("pink noise out of range at %v: %v", i, v)
		}
	}
}

func TestRedNoiseStaysBounded(t *testing.T) {
	n := newRedNoise(1)
	for i := 0; i < 10000; i++ {
		v := n.next()
		if v < -1 || v > 1 || math.IsNaN(v) {
			t.Fatalf("red noise out of range at %v: %v", i, v)
		}
	}
}

func TestLfoRateMapping(t *testing.T) {
	if got := lfoRateHz(0); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("expected 0.2 Hz at 0, got %v", got)
	}
	if got := lfoRateHz(10); math.Abs(got-20) > 1e-9 {
		t.Errorf("expected 20 Hz at 10, got %v", got)
	}
	if got := lfoRateHz(5); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected 2 Hz at midpoint, got %v", got)
	}
	prev := lfoRateHz(0)
	for c := 0.5; c <= 10; c += 0.5 {
		cur := lfoRateHz(c)
		if cur <= prev {
			t.Fatalf("rate curve not increasing at %v", c)
		}
		prev = cur
	}
}

func TestLfoTriangleSweep(t *testing.T) {
	l := newLfo()
	if got := l.sample(0, waveTriangle, 1); got != -1 {
		t.Errorf("expected triangle to start at -1, got %v", got)
	}
	if got := l.sample(0.25, waveTriangle, 1); math.Abs(got) > 1e-9 {
		t.Errorf("expected 0 at quarter phase, got %v", got)
	}
	if got := l.sample(0.5, waveTriangle, 1); math.Abs(got-1) > 1e-9 {
		t.Errorf("expected peak at half phase, got %v", got)
	}
}

func TestLfoSquareIsBipolar(t *testing.T) {
	l := newLfo()
	if got := l.sample(0, waveSquare, 1); got != 1 {
		t.Errorf("expected high half first, got %v", got)
	}
	if got := l.sample(0.6, waveSquare, 1); got != -1 {
		t.Errorf("expected low half, got %v", got)
	}
}

func TestLfoPhaseSurvivesRateChange(t *testing.T) {
	l := newLfo()
	l.sample(0, waveTriangle, 2)
	l.sample(0.1, waveTriangle, 2) // phase 0.2
	v := l.sample(0.2, waveTriangle, 8)
	// 0.1s more at 8 Hz: phase 0.2 + 0.8 = 1.0 -> wraps to 0
	if math.Abs(v-(-1)) > 1e-9 {
		t.Errorf("expected continuous phase accumulation, got %v", v)
	}
}

func TestRouterOutputBounded(t *testing.T) {
	m := newModRouter()
	for _, source1 := range []int{modSourceOsc, modSourceContour} {
		for _, source2 := range []int{modSourceNoise, modSourceLfo} {
			for _, mix := range []float64{0, 2.5, 5, 7.5, 10} {
				p := newModParams()
				p.source1 = source1
				p.source2 = source2
				p.mix = mix
				p.noiseKind = noiseRed
				for i := 0; i < 1000; i++ {
					v := m.sample(float64(i)*0.03, 0.7, p)
					if v < -1 || v > 1 || math.IsNaN(v) {
						t.Fatalf("router out of range (%v/%v mix %v): %v", source1, source2, mix, v)
					}
				}
			}
		}
	}
}

func TestRouterContourSourceIsBipolar(t *testing.T) {
	m := newModRouter()
	p := newModParams()
	p.source1 = modSourceContour
	p.mix = 0 // source 1 only
	if got := m.sample(0, 1, p); got != 1 {
		t.Errorf("expected full contour to map to +1, got %v", got)
	}
	if got := m.sample(0.03, 0, p); got != -1 {
		t.Errorf("expected zero contour to map to -1, got %v", got)
	}
	if got := m.sample(0.06, 0.5, p); math.Abs(got) > 1e-9 {
		t.Errorf("expected mid contour to map to 0, got %v", got)
	}
}

func TestRouterSwallowsNonFiniteContour(t *testing.T) {
	m := newModRouter()
	p := newModParams()
	p.source1 = modSourceContour
	p.mix = 0
	if got := m.sample(0, math.NaN(), p); math.IsNaN(got) || got < -1 || got > 1 {
		t.Errorf("expected finite output for NaN contour, got %v", got)
	}
}

func TestRouterFullMixIgnoresSource1(t *testing.T) {
	m := newModRouter()
	p := newModParams()
	p.source1 = modSourceContour
	p.source2 = modSourceLfo
	p.mix = 10
	p.lfoRate = 0
	a := m.sample(0, 1, p)
	b := m.sample(0, 0, p)
	if a != b {
		t.Errorf("expected source 1 to be fully mixed out, got %v vs %v", a, b)
	}
}

func TestSlewRampsLinearly(t *testing.T) {
	var s slew
	s.to(10, 1) // 48 samples at 48kHz
	half := 0.0
	for i := 0; i < 24; i++ {
		half = s.step()
	}
	if half <= 0 || half >= 10 {
		t.Errorf("expected mid-ramp value, got %v", half)
	}
	for i := 0; i < 100; i++ {
		s.step()
	}
	if got := s.step(); got != 10 {
		t.Errorf("expected slew to settle at target, got %v", got)
	}
}
