package engine

import (
	"log"
	"math"
	"sync/atomic"
)

// ----- Mapping Curves ----- //

const minCutoffHz = 20.0
const maxCutoffHz = 16000.0
const cutoffCenterHz = 1200.0

// cutoffControlToHz maps the [-4,4] cutoff control to Hz musically: one
// octave per unit around the 1200 Hz center, clamped to the device range.
func cutoffControlToHz(control float64) float64 {
	control = clamp(-4, 4, control)
	return clamp(minCutoffHz, maxCutoffHz, cutoffCenterHz*math.Pow(2, control))
}

// resonanceControlToDevice maps the [0,10] emphasis control to the kernel's
// [0,1) resonance. The lower half is linear; above it the curve steepens the
// way the hardware emphasis pot piles on feedback near self-oscillation.
func resonanceControlToDevice(control float64) float64 {
	control = clamp(0, 10, control)
	if control <= 5 {
		return control / 5 * 0.5
	}
	t := (control - 5) / 5
	return 0.5 + 0.47*math.Pow(t, 1.6)
}

// keyTrackingFraction combines the two keyboard-control switches: 1/3, 2/3,
// or both for full tracking.
func keyTrackingFraction(sw1, sw2 bool) float64 {
	f := 0.0
	if sw1 {
		f += 1.0 / 3
	}
	if sw2 {
		f += 2.0 / 3
	}
	return f
}

// keyTrackingRatio is the cutoff multiplier for the held note: fraction of
// the note's octave offset from middle C.
func keyTrackingRatio(fraction float64, note int) float64 {
	if fraction == 0 {
		return 1
	}
	return math.Pow(2, fraction*float64(note-middleC)/12)
}

// ----- Messages ----- //

const filterQueueSize = 256

const (
	fmsgCutoff = iota
	fmsgResonance
	fmsgEnvAttack
	fmsgEnvRelease
	fmsgEnvEnabled
	fmsgModValue
)

type filterMsg struct {
	kind          int
	a, b, c, d, e float64
	on            bool
}

// ----- Filter Adapter ----- //

// filterAdapter fronts the ladder kernel with a bounded, non-blocking
// message queue. Control-side writers never wait on the audio thread; the
// queue is drained once per cycle on the audio clock. Until the kernel load
// completes (or if it fails) the adapter passes audio through untouched, but
// it keeps absorbing messages so the kernel picks up the latest state the
// moment it is attached.
type filterAdapter struct {
	queue    chan filterMsg
	kernel   *ladderKernel
	disposed int32

	baseCutoffHz float64
	resonance    float64
	modOctaves   float64
	envEnabled   bool

	envAttacks int64 // count of contour attacks reaching the kernel interface
}

func newFilterAdapter() *filterAdapter {
	return &filterAdapter{
		queue:        make(chan filterMsg, filterQueueSize),
		baseCutoffHz: cutoffCenterHz,
		envEnabled:   true,
	}
}

// SetCutoff schedules the base cutoff in Hz (key tracking already applied).
func (f *filterAdapter) SetCutoff(hz float64) {
	f.send(filterMsg{kind: fmsgCutoff, a: hz})
}

// SetResonance schedules the device-unit resonance.
func (f *filterAdapter) SetResonance(q float64) {
	f.send(filterMsg{kind: fmsgResonance, a: q})
}

// TriggerEnvelopeAttack starts the kernel-side contour sweep.
func (f *filterAdapter) TriggerEnvelopeAttack(baseHz, peakHz, attackSec, decaySec, sustain float64) {
	atomic.AddInt64(&f.envAttacks, 1)
	f.send(filterMsg{kind: fmsgEnvAttack, a: baseHz, b: peakHz, c: attackSec, d: decaySec, e: sustain})
}

// TriggerEnvelopeRelease sweeps the contour back toward the base cutoff.
func (f *filterAdapter) TriggerEnvelopeRelease(baseHz, releaseSec float64) {
	f.send(filterMsg{kind: fmsgEnvRelease, a: baseHz, b: releaseSec})
}

// SetKernelEnvelopeEnabled disables the kernel's internal contour when the
// modulation router owns the cutoff target, so the two never stack.
func (f *filterAdapter) SetKernelEnvelopeEnabled(enabled bool) {
	f.send(filterMsg{kind: fmsgEnvEnabled, on: enabled})
}

// PushModulationValue offsets the cutoff by the given octaves.
func (f *filterAdapter) PushModulationValue(octaves float64) {
	f.send(filterMsg{kind: fmsgModValue, a: octaves})
}

// send is best-effort: a full queue drops the message, a disposed adapter
// swallows it (expected during teardown races).
func (f *filterAdapter) send(msg filterMsg) {
	if atomic.LoadInt32(&f.disposed) != 0 {
		return
	}
	select {
	case f.queue <- msg:
	default:
		log.Println("filter adapter: message queue full, dropping")
	}
}

func (f *filterAdapter) attach(k *ladderKernel) {
	f.kernel = k
	k.setCutoff(f.effectiveCutoff())
	k.setResonance(f.resonance)
	k.setEnvelopeActive(false)
}

func (f *filterAdapter) dispose() {
	atomic.StoreInt32(&f.disposed, 1)
	f.kernel = nil
}

func (f *filterAdapter) wired() bool {
	return f.kernel != nil
}

func (f *filterAdapter) effectiveCutoff() float64 {
	return clamp(minCutoffHz, maxCutoffHz, f.baseCutoffHz*math.Pow(2, f.modOctaves))
}

// drain applies queued messages and advances the kernel clock. Runs on the
// audio thread under the state lock.
func (f *filterAdapter) drain(clock float64) {
	for {
		select {
		case msg := <-f.queue:
			f.apply(msg)
		default:
			if f.kernel != nil {
				f.kernel.updateEnvelope(clock)
				f.kernel.smoothParams()
			}
			return
		}
	}
}

func (f *filterAdapter) apply(msg filterMsg) {
	k := f.kernel
	switch msg.kind {
	case fmsgCutoff:
		f.baseCutoffHz = clampFinite(minCutoffHz, maxCutoffHz, msg.a, f.baseCutoffHz)
		if k != nil {
			k.setCutoff(f.effectiveCutoff())
		}
	case fmsgResonance:
		f.resonance = clampFinite(0, 0.97, msg.a, f.resonance)
		if k != nil {
			k.setResonance(f.resonance)
		}
	case fmsgEnvAttack:
		if k != nil && f.envEnabled {
			k.setEnvelopeDecayTime(msg.d)
			k.setEnvelopeSustainLevel(msg.e)
			k.setEnvelopeAttack(msg.a, msg.b, msg.c)
		}
	case fmsgEnvRelease:
		if k != nil && f.envEnabled {
			k.setEnvelopeRelease(msg.a, msg.b)
		}
	case fmsgEnvEnabled:
		f.envEnabled = msg.on
		if k != nil {
			k.setEnvelopeActive(false)
			if !msg.on {
				k.setCutoff(f.effectiveCutoff())
			}
		}
	case fmsgModValue:
		f.modOctaves = clampFinite(-cutoffModMaxOctaves, cutoffModMaxOctaves, msg.a, f.modOctaves)
		if k != nil {
			k.setCutoff(f.effectiveCutoff())
		}
	}
}

// step filters one sample, or passes it through while bypassed.
func (f *filterAdapter) step(in float64) float64 {
	if f.kernel == nil {
		return in
	}
	return f.kernel.process(in)
}
