package engine

import "math"

// ----- Pot Taper ----- //

// potTaperMs approximates the logarithmic taper of the hardware contour time
// pots: the [0,10] control sweeps 5 ms to 10 s, with most of the resolution
// in the short times.
var potTaperMs = []struct {
	pos float64
	ms  float64
}{
	{0, 5},
	{2, 95},
	{4, 350},
	{6, 1000},
	{8, 4300},
	{10, 10000},
}

func potTimeMs(pos float64) float64 {
	pos = clamp(0, 10, pos)
	for i := 1; i < len(potTaperMs); i++ {
		lo, hi := potTaperMs[i-1], potTaperMs[i]
		if pos <= hi.pos {
			t := (pos - lo.pos) / (hi.pos - lo.pos)
			return lo.ms + t*(hi.ms-lo.ms)
		}
	}
	return potTaperMs[len(potTaperMs)-1].ms
}

// ----- Envelope ----- //

const (
	envIdle = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// quickReleaseMs is applied when the decay switch is off: just enough slope
// to avoid a click, then the voice stops.
const quickReleaseMs = 10.0

const retriggerScale = 0.75

/*
    1 +     x
      |    / `-.
  s   +   /     `-x------x
      |  /                `.
      | /                   `.
    0 +-----+----+--------+----
      |a    |d   |        |r |
*/
// envelope is an exponential-segment contour generator. Each segment
// approaches its target with a time constant of nominal/5, so roughly five
// time constants span the nominal pot time.
type envelope struct {
	stage     int
	value     float64
	from      float64
	pos       int
	attackMs  float64
	decayMs   float64
	releaseMs float64
	sustain   float64 // 0-1
}

func newEnvelope() *envelope {
	return &envelope{stage: envIdle}
}

// gateOn snapshots the pot-derived times and (re)starts the attack. A
// retrigger while a segment is in flight ramps from the current value scaled
// down instead of zero, which keeps fast legato presses click-free.
func (e *envelope) gateOn(attackMs, decayMs, sustain float64) {
	e.attackMs = attackMs
	e.decayMs = decayMs
	e.sustain = clamp(0, 1, sustain)
	if e.stage != envIdle {
		e.value *= retriggerScale
	}
	e.from = e.value
	e.stage = envAttack
	e.pos = 0
}

func (e *envelope) gateOff(releaseMs float64) {
	if e.stage == envIdle {
		return
	}
	e.releaseMs = releaseMs
	e.from = e.value
	e.stage = envRelease
	e.pos = 0
}

// approach moves from initial toward target; t is elapsed time over one time
// constant. 63% of the remaining distance is covered per unit of t.
func approach(initial, target, t float64) float64 {
	return target + (initial-target)*math.Exp(-t)
}

// step advances one sample and reports whether the envelope just went idle.
func (e *envelope) step() bool {
	switch e.stage {
	case envAttack:
		if e.segment(1.0, e.attackMs) {
			e.stage = envDecay
			e.from = e.value
			e.pos = 0
		}
	case envDecay:
		if e.segment(e.sustain, e.decayMs) {
			e.stage = envSustain
			e.pos = 0
		}
	case envSustain:
		e.value = e.sustain
	case envRelease:
		if e.segment(0, e.releaseMs) {
			e.stage = envIdle
			e.pos = 0
			return true
		}
	}
	return false
}

// segment runs one exponential approach toward target, ending either when
// the value is close enough or when the nominal time (5 tau) has elapsed.
func (e *envelope) segment(target float64, nominalMs float64) bool {
	if nominalMs <= 0 {
		e.value = target
		return true
	}
	tau := nominalMs / 5
	elapsed := float64(e.pos) * secPerSample * 1000
	e.value = approach(e.from, target, elapsed/tau)
	e.pos++
	if math.Abs(e.value-target) < 0.001 || elapsed >= nominalMs {
		e.value = target
		return true
	}
	return false
}
