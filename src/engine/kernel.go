package engine

import (
	"fmt"
	"math"
)

// ----- Ladder Kernel ----- //

// ladderKernel is the Huovilainen model of the four-stage transistor ladder
// (after Huovilainen 2004/2010 and Lazzarini's CSound implementation): tanh
// saturation per stage with thermal scaling, 2x oversampling and a
// half-sample compensation delay in the feedback path. It also carries the
// kernel-side contour envelope that sweeps the cutoff between note triggers;
// the adapter can switch that envelope off when cutoff is driven externally.
type ladderKernel struct {
	rate      float64
	stage     [4]float64
	stageTanh [3]float64
	delay     [6]float64

	thermal float64
	tune    float64
	acr     float64
	resQuad float64

	cutoff          float64
	resonance       float64
	targetCutoff    float64
	targetResonance float64
	smoothing       float64

	dcIn, dcOut float64

	// contour envelope
	envActive       bool
	envPhase        int // 0 idle/releasing, 1 attack, 2 decay, 3 sustain
	manualCutoff    float64
	envCutoff       float64
	envStartCutoff  float64
	envTargetCutoff float64
	envStartTime    float64
	envDuration     float64
	envDecayTime    float64
	envSustainLevel float64
	timeNow         float64
}

const dcBlockCoeff = 0.995

// loadLadderKernel builds and tunes a kernel instance. The graph calls it
// asynchronously; failure leaves the graph on its bypass path.
func loadLadderKernel(rate float64) (*ladderKernel, error) {
	if rate < 8000 || rate > 192000 {
		return nil, fmt.Errorf("ladder kernel: unsupported sample rate %v", rate)
	}
	k := &ladderKernel{
		rate:            rate,
		thermal:         0.000025,
		smoothing:       0.1,
		envDecayTime:    0.5,
		envSustainLevel: 0.5,
		cutoff:          1000,
		targetCutoff:    1000,
		manualCutoff:    1000,
		envCutoff:       1000,
		resonance:       0.1,
		targetResonance: 0.1,
	}
	k.updateCoefficients()
	return k, nil
}

func (k *ladderKernel) updateCoefficients() {
	fc := k.cutoff / k.rate
	// keep well below Nyquist or the feedback path blows up
	fc = math.Min(fc, 0.45)
	f := fc * 0.5 // oversampled
	fc2 := fc * fc
	fc3 := fc2 * fc

	fcr := 1.8730*fc3 + 0.4955*fc2 - 0.6490*fc + 0.9988
	k.acr = -3.9364*fc2 + 1.8409*fc + 0.9968
	k.tune = (1.0 - math.Exp(-(2*math.Pi)*f*fcr)) / k.thermal
	k.resQuad = 4.0 * k.resonance * k.acr
}

func (k *ladderKernel) setCutoff(hz float64) {
	k.manualCutoff = hz
	if !k.envActive {
		k.targetCutoff = hz
	}
}

func (k *ladderKernel) setResonance(r float64) {
	k.targetResonance = clamp(0, 0.97, r)
}

func (k *ladderKernel) setEnvelopeActive(active bool) {
	k.envActive = active
	if !active {
		k.targetCutoff = k.manualCutoff
		k.envPhase = 0
	}
}

func (k *ladderKernel) setEnvelopeDecayTime(sec float64) {
	k.envDecayTime = sec
}

func (k *ladderKernel) setEnvelopeSustainLevel(level float64) {
	k.envSustainLevel = clamp(0, 1, level)
}

func (k *ladderKernel) setEnvelopeAttack(startCutoff, peakCutoff, attackSec float64) {
	k.envStartCutoff = startCutoff
	k.envTargetCutoff = peakCutoff
	k.envStartTime = k.timeNow
	k.envDuration = attackSec
	k.envPhase = 1
	k.envActive = true
}

func (k *ladderKernel) setEnvelopeRelease(targetCutoff, releaseSec float64) {
	k.envStartCutoff = k.envCutoff
	k.envTargetCutoff = targetCutoff
	k.envStartTime = k.timeNow
	k.envDuration = releaseSec
	k.envPhase = 0
}

// updateEnvelope advances the contour to the given audio-clock time.
func (k *ladderKernel) updateEnvelope(t float64) {
	k.timeNow = t
	if k.envPhase == 0 {
		// phase 0 doubles as the release ramp while the envelope is
		// still active
		if !k.envActive || k.envDuration <= 0 {
			return
		}
		elapsed := t - k.envStartTime
		progress := elapsed / k.envDuration
		if progress >= 1 {
			k.envCutoff = k.envTargetCutoff
			k.targetCutoff = k.envCutoff
			k.envActive = false
			k.envDuration = 0
			return
		}
		k.envCutoff = k.envStartCutoff + (k.envTargetCutoff-k.envStartCutoff)*progress
		k.targetCutoff = k.envCutoff
		return
	}
	elapsed := t - k.envStartTime
	progress := 1.0
	if k.envDuration > 0 {
		progress = elapsed / k.envDuration
	}
	if progress >= 1.0 {
		switch k.envPhase {
		case 1:
			k.envStartCutoff = k.envTargetCutoff
			sustainCutoff := k.envStartCutoff + (k.manualCutoff-k.envStartCutoff)*(1.0-k.envSustainLevel)
			k.envTargetCutoff = sustainCutoff
			k.envStartTime = t
			k.envDuration = k.envDecayTime
			k.envPhase = 2
		case 2:
			k.envPhase = 3
		case 3:
			return
		}
		progress = 1.0
	}
	k.envCutoff = k.envStartCutoff + (k.envTargetCutoff-k.envStartCutoff)*progress
	k.targetCutoff = k.envCutoff
}

// smoothParams eases cutoff/resonance toward their targets once per cycle to
// keep fast automation free of zipper noise.
func (k *ladderKernel) smoothParams() {
	k.cutoff += (k.targetCutoff - k.cutoff) * k.smoothing
	k.resonance += (k.targetResonance - k.resonance) * k.smoothing
	k.updateCoefficients()
}

func (k *ladderKernel) process(in float64) float64 {
	// DC blocker keeps the resonant feedback from drifting
	dcb := in - k.dcIn + dcBlockCoeff*k.dcOut
	k.dcIn = in
	k.dcOut = dcb

	for j := 0; j < 2; j++ { // 2x oversampled
		input := dcb - k.resQuad*k.delay[5]
		k.delay[0] += k.tune * (math.Tanh(input*k.thermal) - k.stageTanh[0])
		k.stage[0] = k.delay[0]

		k.stageTanh[0] = math.Tanh(k.stage[0] * k.thermal)
		k.stage[1] = k.delay[1] + k.tune*(k.stageTanh[0]-k.stageTanh[1])
		k.delay[1] = k.stage[1]

		k.stageTanh[1] = math.Tanh(k.stage[1] * k.thermal)
		k.stage[2] = k.delay[2] + k.tune*(k.stageTanh[1]-k.stageTanh[2])
		k.delay[2] = k.stage[2]

		k.stageTanh[2] = math.Tanh(k.stage[2] * k.thermal)
		k.stage[3] = k.delay[3] + k.tune*(k.stageTanh[2]-math.Tanh(k.delay[3]*k.thermal))
		k.delay[3] = k.stage[3]

		// half-sample delay for phase compensation
		k.delay[5] = (k.stage[3] + k.delay[4]) * 0.5
		k.delay[4] = k.stage[3]
	}
	return k.delay[5]
}
