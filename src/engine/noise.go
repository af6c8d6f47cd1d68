package engine

import (
	"math"
	"math/rand"
)

// ----- Pink Noise ----- //

// pinkNoise filters white noise through six weighted one-pole recursions
// (Kellett's economy filter), giving ~-3dB/octave down to a few Hz.
type pinkNoise struct {
	b0, b1, b2, b3, b4, b5 float64
	rnd                    *rand.Rand
}

func newPinkNoise(seed int64) *pinkNoise {
	return &pinkNoise{rnd: rand.New(rand.NewSource(seed))}
}

func (n *pinkNoise) next() float64 {
	white := n.rnd.Float64()*2 - 1
	n.b0 = 0.99886*n.b0 + white*0.0555179
	n.b1 = 0.99332*n.b1 + white*0.0750759
	n.b2 = 0.96900*n.b2 + white*0.1538520
	n.b3 = 0.86650*n.b3 + white*0.3104856
	n.b4 = 0.55000*n.b4 + white*0.5329522
	n.b5 = -0.7616*n.b5 - white*0.0168980
	v := (n.b0 + n.b1 + n.b2 + n.b3 + n.b4 + n.b5 + white*0.5362) * 0.11
	return clamp(-1, 1, v)
}

// ----- Red Noise ----- //

// redNoise leaks white noise through a single-pole integrator (-6dB/octave).
type redNoise struct {
	value float64
	rnd   *rand.Rand
}

func newRedNoise(seed int64) *redNoise {
	return &redNoise{rnd: rand.New(rand.NewSource(seed))}
}

func (n *redNoise) next() float64 {
	white := n.rnd.Float64()*2 - 1
	n.value = (n.value + 0.02*white) / 1.02
	return clamp(-1, 1, n.value*3.5)
}

// ----- LFO ----- //

const lfoMinHz = 0.2
const lfoMaxHz = 20.0

// lfoRateHz maps the [0,10] rate control exponentially across [0.2,20] Hz.
func lfoRateHz(control float64) float64 {
	control = clamp(0, 10, control)
	return lfoMinHz * math.Pow(lfoMaxHz/lfoMinHz, control/10)
}

type lfo struct {
	phase    float64
	lastTime float64
}

func newLfo() *lfo {
	return &lfo{lastTime: math.NaN()}
}

// sample advances the LFO phase to time t and returns the waveform value.
// Phase accumulates across rate changes so a rate sweep stays continuous.
func (l *lfo) sample(t float64, wave int, rate float64) float64 {
	if !math.IsNaN(l.lastTime) && t > l.lastTime {
		l.phase += (t - l.lastTime) * rate
		_, l.phase = math.Modf(l.phase)
	}
	l.lastTime = t
	switch wave {
	case waveSquare:
		if l.phase < 0.5 {
			return 1
		}
		return -1
	default: // triangle
		if l.phase < 0.5 {
			return l.phase*4 - 1
		}
		return l.phase*(-4) + 3
	}
}
