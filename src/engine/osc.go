package engine

import (
	"math"
)

// ----- Slew ----- //

// slew ramps a control value linearly to a new target over a short window so
// that control-rate writes land as glitch-free automation on the audio clock.
type slew struct {
	value  float64
	from   float64
	target float64
	pos    int
	length int
}

func (s *slew) to(target float64, ms float64) {
	s.from = s.value
	s.target = target
	s.pos = 0
	s.length = int(ms / 1000 * sampleRate)
	if s.length <= 0 {
		s.length = 1
	}
}
func (s *slew) step() float64 {
	if s.pos < s.length {
		t := float64(s.pos) / float64(s.length)
		s.value = t*s.target + (1-t)*s.from
		s.pos++
	} else {
		s.value = s.target
	}
	return s.value
}

// ----- OSC ----- //

type osc struct {
	enabled   bool
	wave      int
	level     float64
	freq      float64
	phase01   float64
	glideTime float64 // ms
	gliding   bool
	shiftPos  float64
	prevFreq  float64
	nextFreq  float64
}

func oscFreq(p *oscParams, note int) float64 {
	return noteToFreq(note) * math.Pow(2, float64(p.semi)/12) * rangeRatio(p.rng)
}

func (o *osc) applyParams(p *oscParams) {
	o.enabled = p.enabled
	o.wave = p.wave
	o.level = p.volume / 10
}

func (o *osc) initWithNote(p *oscParams, note int) {
	o.applyParams(p)
	o.freq = oscFreq(p, note)
	o.gliding = false
}

func (o *osc) glide(p *oscParams, note int, glideTime float64) {
	nextFreq := oscFreq(p, note)
	if math.Abs(nextFreq-o.freq) < 0.001 {
		return
	}
	if glideTime <= 0 {
		o.freq = nextFreq
		o.gliding = false
		return
	}
	o.glideTime = glideTime
	o.prevFreq = o.freq
	o.nextFreq = nextFreq
	o.gliding = true
	o.shiftPos = 0
}

func (o *osc) step(freqRatio float64) float64 {
	value := 0.0
	if o.enabled {
		p := o.phase01
		switch o.wave {
		case waveTriangle:
			if p < 0.5 {
				value = p*4 - 1
			} else {
				value = p*(-4) + 3
			}
		case waveSaw:
			value = p*2 - 1
		case waveSawRev:
			value = p*(-2) + 1
		case waveSquare:
			if p < 0.5 {
				value = 1
			} else {
				value = -1
			}
		case wavePulseWide:
			if p < 0.25 {
				value = 1
			} else {
				value = -1
			}
		case wavePulseNarrow:
			if p < 0.1 {
				value = 1
			} else {
				value = -1
			}
		}
		value *= o.level
	}
	o.phase01 += o.freq * freqRatio / float64(sampleRate)
	_, o.phase01 = math.Modf(o.phase01)
	if o.gliding {
		o.shiftPos++
		t := o.shiftPos * secPerSample * 1000 / o.glideTime
		o.freq = t*o.nextFreq + (1-t)*o.prevFreq
		if t >= 1 || math.Abs(o.nextFreq-o.freq) < 0.001 {
			o.freq = o.nextFreq
			o.gliding = false
		}
	}
	return value
}

// ----- OSC Bank ----- //

const oscGain = 0.12
const bendRangeSemi = 2.0

type oscBank struct {
	oscs      []*osc
	running   bool
	modCents  *slew
	bendRatio float64
}

func newOscBank() *oscBank {
	return &oscBank{
		oscs:      []*osc{{}, {}, {}},
		modCents:  &slew{},
		bendRatio: 1.0,
	}
}

func (b *oscBank) applyParams(p *params) {
	for i, o := range b.oscs {
		o.applyParams(p.osc[i])
	}
	b.bendRatio = math.Pow(2, (p.pitchBend-50)/50*bendRangeSemi/12)
}

// glideTimeMs maps the [0,10] glide control to milliseconds through a power
// law, mimicking the sweep of the hardware glide pot.
func glideTimeMs(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return 12 * math.Pow(amount, 2.4)
}

func (b *oscBank) trigger(p *params, note int) {
	for i, o := range b.oscs {
		o.initWithNote(p.osc[i], note)
	}
	b.running = true
}

// setNote moves only the pitch layer: envelopes are left alone so fast
// repeated presses stay legato.
func (b *oscBank) setNote(p *params, note int) {
	glide := 0.0
	if p.glideOn {
		glide = glideTimeMs(p.glideAmount)
	}
	for i, o := range b.oscs {
		o.glide(p.osc[i], note, glide)
	}
}

func (b *oscBank) setPitchMod(cents float64) {
	b.modCents.to(cents, modUpdateIntervalMs)
}

func (b *oscBank) stop() {
	b.running = false
}

func (b *oscBank) step() float64 {
	if !b.running {
		return 0
	}
	ratio := b.bendRatio * math.Pow(2, b.modCents.step()/1200)
	value := 0.0
	for _, o := range b.oscs {
		value += o.step(ratio)
	}
	return value * oscGain
}
