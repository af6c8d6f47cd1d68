package engine

import (
	"log"
	"math"
)

// ----- Effect Send ----- //

// echoSend is a single feedback-delay effect send sitting after the loudness
// stage.
type echoSend struct {
	enabled  bool
	cursor   int
	past     []float64
	feedback float64
	mix      float64
}

func newEchoSend() *echoSend {
	return &echoSend{past: make([]float64, sampleRate/2)}
}

func (e *echoSend) applyParams(p *echoParams) {
	wasEnabled := e.enabled
	e.enabled = p.enabled
	millis := p.delay
	if millis < 10 {
		millis = 10
	}
	length := int(sampleRate * millis / 1000)
	if cap(e.past) >= length {
		prev := len(e.past)
		e.past = e.past[0:length]
		// a longer line must not replay what an earlier note left behind
		for i := prev; i < length; i++ {
			e.past[i] = 0
		}
	} else {
		e.past = make([]float64, length)
	}
	if e.enabled && !wasEnabled {
		for i := range e.past {
			e.past[i] = 0
		}
	}
	if e.cursor >= len(e.past) {
		e.cursor = 0
	}
	e.feedback = p.feedbackGain
	e.mix = p.mix
}

func (e *echoSend) step(in float64) float64 {
	if !e.enabled {
		return in
	}
	delayed := e.past[e.cursor]
	e.past[e.cursor] = in + delayed*e.feedback
	e.cursor++
	if e.cursor >= len(e.past) {
		e.cursor = 0
	}
	return in + delayed*e.mix
}

// ----- Saturation ----- //

// saturate soft-clips the mixer output; unity gain for small signals.
func saturate(v float64) float64 {
	return math.Tanh(v*1.5) / 1.5
}

// ----- Signal Graph ----- //

const (
	graphDown = iota
	graphBypassed
	graphWired
	graphClosed
)

// signalGraph owns the audio chain: oscillator bank -> mixer -> saturation
// -> ladder adapter -> loudness gain -> echo send -> master. Everything up
// through the loudness stage is wired synchronously so the engine can make
// sound immediately; the ladder kernel is loaded asynchronously and spliced
// in once ready. The graph is only ever observably "bypassed" or "wired";
// the splice happens under the same lock as note triggers.
type signalGraph struct {
	phase    int
	bank     *oscBank
	adapter  *filterAdapter
	loudness *envelope
	contour  *envelope
	router   *modRouter
	echo     *echoSend

	trackedNote   int
	lastCutoffHz  float64
	lastResonance float64
	lastEnvOwned  bool
}

func newSignalGraph() *signalGraph {
	return &signalGraph{
		phase:       graphDown,
		bank:        newOscBank(),
		adapter:     newFilterAdapter(),
		loudness:    newEnvelope(),
		contour:     newEnvelope(),
		router:      newModRouter(),
		echo:        newEchoSend(),
		trackedNote: middleC,
	}
}

// build wires the synchronous stages and kicks off the kernel load. The
// completion handler takes the state lock, so the splice can never race a
// note trigger.
func (g *signalGraph) build(st *state) {
	g.phase = graphBypassed
	go func() {
		k, err := loadLadderKernel(sampleRate)
		st.Lock()
		defer st.Unlock()
		g.completeKernelLoad(k, err)
	}()
}

func (g *signalGraph) completeKernelLoad(k *ladderKernel, err error) {
	if g.phase != graphBypassed {
		// torn down while loading; drop the kernel
		return
	}
	if err != nil {
		log.Printf("ladder kernel load failed, staying on bypass: %v\n", err)
		return
	}
	g.adapter.attach(k)
	g.phase = graphWired
}

// teardown disconnects every stage. Safe to call repeatedly.
func (g *signalGraph) teardown() {
	if g.phase == graphClosed {
		return
	}
	g.phase = graphClosed
	g.adapter.dispose()
	g.bank.stop()
	g.loudness.gateOff(0)
	g.contour.gateOff(0)
}

// applyParams pushes control-side parameter state into the chain. Cutoff and
// resonance only generate adapter messages when they actually change.
func (g *signalGraph) applyParams(p *params) {
	g.bank.applyParams(p)
	g.echo.applyParams(p.echo)

	cutoff := g.trackedCutoffHz(p)
	if cutoff != g.lastCutoffHz {
		g.lastCutoffHz = cutoff
		g.adapter.SetCutoff(cutoff)
	}
	resonance := resonanceControlToDevice(p.filter.emphasis)
	if resonance != g.lastResonance {
		g.lastResonance = resonance
		g.adapter.SetResonance(resonance)
	}
	envOwned := p.mod.toCutoff
	if envOwned != g.lastEnvOwned {
		g.lastEnvOwned = envOwned
		g.adapter.SetKernelEnvelopeEnabled(!envOwned)
	}
}

func (g *signalGraph) trackedCutoffHz(p *params) float64 {
	fraction := keyTrackingFraction(p.filter.keyTrack1, p.filter.keyTrack2)
	return clamp(minCutoffHz, maxCutoffHz,
		cutoffControlToHz(p.filter.cutoff)*keyTrackingRatio(fraction, g.trackedNote))
}

func (g *signalGraph) setTrackedNote(note int, p *params) {
	g.trackedNote = note
	cutoff := g.trackedCutoffHz(p)
	if cutoff != g.lastCutoffHz {
		g.lastCutoffHz = cutoff
		g.adapter.SetCutoff(cutoff)
	}
}

// gateOn opens both envelopes for a fresh (silence-to-sound) attack. A zero
// contour amount schedules nothing at the kernel.
func (g *signalGraph) gateOn(p *params) {
	l := p.loudness
	g.loudness.gateOn(potTimeMs(l.attack), potTimeMs(l.decay), l.sustain/10)
	f := p.filter
	if f.contourAmount > 0 {
		g.contour.gateOn(potTimeMs(f.attack), potTimeMs(f.decay), f.sustain/10)
		base := g.trackedCutoffHz(p)
		peak := clamp(minCutoffHz, maxCutoffHz, base*(1+f.contourAmount/10))
		g.adapter.TriggerEnvelopeAttack(base, peak,
			potTimeMs(f.attack)/1000, potTimeMs(f.decay)/1000, f.sustain/10)
	}
}

// gateOff starts the release. With the decay switch on, the release runs the
// full decay time and the voice stops only once it completes; off, a short
// fixed release avoids the click and the voice stops right after.
func (g *signalGraph) gateOff(p *params) {
	release := quickReleaseMs
	if p.decaySwitch {
		release = potTimeMs(p.loudness.decay)
	}
	g.loudness.gateOff(release)
	if p.filter.contourAmount > 0 {
		filterRelease := quickReleaseMs
		if p.decaySwitch {
			filterRelease = potTimeMs(p.filter.decay)
		}
		g.contour.gateOff(filterRelease)
		g.adapter.TriggerEnvelopeRelease(g.trackedCutoffHz(p), filterRelease/1000)
	}
}

// step renders one output sample.
func (g *signalGraph) step(p *params) float64 {
	finished := g.loudness.step()
	g.contour.step()
	if finished && !p.glideOn {
		// full release completed; hard-stop the oscillators
		g.bank.stop()
	}
	v := g.bank.step()
	v = saturate(v)
	v = g.adapter.step(v)
	v *= g.loudness.value * p.master / 10
	v = g.echo.step(v)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clamp(-1, 1, v)
}
