package engine

import (
	"math"
	"time"
)

// ----- Modulation Router ----- //

// The router is sampled at control rate (tens of Hz) by the engine's poller
// and never touches the audio thread directly; see Engine.runModulation.
const modUpdateInterval = 30 * time.Millisecond
const modUpdateIntervalMs = 30.0

// Depth maxima per target. Pitch modulation is cents-based (a full wheel
// swings +-200 cents), cutoff modulation sweeps a four-octave window.
const pitchModMaxCents = 200.0
const cutoffModMaxOctaves = 4.0

// Rate of the free-running modulation oscillator once the keyboard no longer
// controls it: a fixed vibrato-friendly 6 Hz.
const modOscFreqHz = 6.0

type modRouter struct {
	pink   *pinkNoise
	red    *redNoise
	lfo    *lfo
	modOsc *lfo
}

func newModRouter() *modRouter {
	return &modRouter{
		pink:   newPinkNoise(1),
		red:    newRedNoise(2),
		lfo:    newLfo(),
		modOsc: newLfo(),
	}
}

// sample mixes the two selected sources at time t and returns a bipolar
// value in [-1,1]. contourValue is the filter contour envelope's current
// unipolar value, re-expressed bipolar when selected as source 1.
func (m *modRouter) sample(t float64, contourValue float64, p *modParams) float64 {
	var a float64
	switch p.source1 {
	case modSourceContour:
		a = clamp(0, 1, contourValue)*2 - 1
	default:
		a = m.modOsc.sample(t, p.oscWave, modOscFreqHz)
	}
	var b float64
	switch p.source2 {
	case modSourceLfo:
		b = m.lfo.sample(t, p.lfoWave, lfoRateHz(p.lfoRate))
	default:
		if p.noiseKind == noiseRed {
			b = m.red.next()
		} else {
			b = m.pink.next()
		}
	}
	k := clamp(0, 1, p.mix/10)
	v := (1-k)*a + k*b
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clamp(-1, 1, v)
}
