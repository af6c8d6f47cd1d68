package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/hajimehoshi/oto"
)

const (
	sampleRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
	samplesPerCycle = 1024
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate
const baseFreq = 440.0
const middleC = 60

// ----- Utility ----- //

func now() float64 {
	return float64(time.Now().UnixNano()) / 1000 / 1000 / 1000
}
func noteToFreq(note int) float64 {
	return baseFreq * math.Pow(2, float64(note-69)/12)
}
func clamp(min float64, max float64, v float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clampFinite guards the real-time path against NaN/Inf coming in from the
// control side: a non-finite value keeps the last known safe one.
func clampFinite(min float64, max float64, v float64, safe float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return safe
	}
	return clamp(min, max, v)
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// ----- Note Event ----- //

const (
	eventNoteOn = iota
	eventNoteOff
)

type noteEvent struct {
	offset float64
	kind   int
	note   int
}

// ----- Changes ----- //

// Changes ...
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

func newChanges() *Changes {
	return &Changes{dict: make(map[string]struct{})}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- State ----- //

type state struct {
	sync.Mutex
	events   [][]*noteEvent // length: samplesPerCycle * 2
	params   *params
	graph    *signalGraph
	voices   *voiceManager
	pos      int64
	lastRead float64
}

func newState() *state {
	st := &state{
		events: make([][]*noteEvent, samplesPerCycle*2),
		params: newParams(),
		graph:  newSignalGraph(),
		voices: newVoiceManager(),
	}
	return st
}

// ----- Engine ----- //

// Engine is the whole monophonic synth core. It implements io.Reader; the
// audio player pulling PCM out of Read() is the real-time clock that every
// note event and parameter ramp is scheduled against.
type Engine struct {
	ctx        context.Context
	otoContext *oto.Context
	CommandCh  chan []string
	Changes    *Changes
	state      *state
	done       chan struct{}
	closeOnce  sync.Once

	lastCutoffMod float64 // guarded by state's lock
}

var _ io.Reader = (*Engine)(nil)

type engineJSON struct {
	Params json.RawMessage `json:"params"`
}

// NewEngine ...
func NewEngine() (*Engine, error) {
	otoContext, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	e := newEngineCore()
	e.otoContext = otoContext
	return e, nil
}

// newEngineCore builds everything except the audio device so that tests can
// drive Read() directly.
func newEngineCore() *Engine {
	st := newState()
	e := &Engine{
		ctx:       context.Background(),
		CommandCh: make(chan []string, 256),
		Changes:   newChanges(),
		state:     st,
		done:      make(chan struct{}),
	}
	st.graph.build(st)
	go e.processCommands()
	go e.runModulation()
	return e
}

func (e *Engine) processCommands() {
	for command := range e.CommandCh {
		if err := e.update(command); err != nil {
			log.Printf("command %v failed: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

// ApplyJSON ...
func (e *Engine) ApplyJSON(data []byte) {
	e.state.Lock()
	defer e.state.Unlock()
	var j engineJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to Engine", err)
		return
	}
	e.state.params.applyJSON(j.Params)
}

// ToJSON ...
func (e *Engine) ToJSON() []byte {
	e.state.Lock()
	defer e.state.Unlock()
	bytes, err := json.Marshal(toRawMessage(&engineJSON{
		Params: e.state.params.toJSON(),
	}))
	if err != nil {
		panic(err)
	}
	return bytes
}

func (e *Engine) Read(buf []byte) (int, error) {
	select {
	case <-e.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
		st := e.state
		st.Lock()
		defer st.Unlock()
		timestamp := now()
		bufSamples := int64(len(buf) / bytesPerSample)

		g := st.graph
		g.applyParams(st.params)
		g.adapter.drain(float64(st.pos) * secPerSample)
		for i := int64(0); i < bufSamples; i++ {
			for _, ev := range st.events[i] {
				switch ev.kind {
				case eventNoteOn:
					st.voices.press(ev.note, g, st.params)
				case eventNoteOff:
					st.voices.release(ev.note, g, st.params)
				}
			}
			writeStereo(buf, int(i), g.step(st.params))
		}
		st.pos += bufSamples
		st.lastRead = timestamp
		eventLength := len(st.events)
		for i := 0; i < eventLength; i++ {
			if i >= eventLength/2 {
				st.events[i-eventLength/2] = st.events[i]
			}
			st.events[i] = nil
		}
		return len(buf), nil
	}
}

func writeStereo(buf []byte, i int, value float64) {
	const max = 32767
	b := int16(clamp(-1, 1, value) * max)
	for ch := 0; ch < channelNum; ch++ {
		buf[bytesPerSample*i+2*ch] = byte(b)
		buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
	}
}

// Start pumps audio into the device until ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	p := e.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	e.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, e, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// Close tears the engine down. Safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		log.Println("Closing Engine...")
		e.state.Lock()
		e.state.graph.teardown()
		e.state.Unlock()
		close(e.done)
		close(e.CommandCh)
		if e.otoContext != nil {
			err = e.otoContext.Close()
		}
	})
	return err
}

// ----- Note Input ----- //

// NoteOn is the sole attack entry point; the on-screen keyboard, pointer
// input and the MIDI translator all end up here.
func (e *Engine) NoteOn(note int) {
	if note < 0 || note > 127 {
		return
	}
	e.state.Lock()
	defer e.state.Unlock()
	e.addNoteEvent(&noteEvent{kind: eventNoteOn, note: note})
}

// NoteOff ...
func (e *Engine) NoteOff(note int) {
	if note < 0 || note > 127 {
		return
	}
	e.state.Lock()
	defer e.state.Unlock()
	e.addNoteEvent(&noteEvent{kind: eventNoteOff, note: note})
}

// SetModWheel sets the modulation depth [0,100].
func (e *Engine) SetModWheel(depth float64) {
	e.state.Lock()
	defer e.state.Unlock()
	p := e.state.params
	p.mod.wheel = clampFinite(0, 100, depth, p.mod.wheel)
	e.Changes.Add("data")
}

// SetPitchBend sets the pitch wheel position [0,100], 50 = center.
func (e *Engine) SetPitchBend(position float64) {
	e.state.Lock()
	defer e.state.Unlock()
	p := e.state.params
	p.pitchBend = clampFinite(0, 100, position, p.pitchBend)
	e.Changes.Add("data")
}

func (e *Engine) addNoteEvent(ev *noteEvent) {
	offset := now() - e.state.lastRead
	index := int(offset / secPerSample)
	if index < 0 {
		index = 0
	}
	if index >= len(e.state.events) {
		index = len(e.state.events) - 1
	}
	ev.offset = offset
	e.state.events[index] = append(e.state.events[index], ev)
}

// ----- Commands ----- //

func (e *Engine) update(command []string) error {
	e.state.Lock()
	defer e.state.Unlock()

	p := e.state.params
	switch command[0] {
	case "set":
		command = command[1:]
		if len(command) == 0 {
			return fmt.Errorf("missing set target")
		}
		switch command[0] {
		case "osc":
			command = command[1:]
			if len(command) != 3 {
				return fmt.Errorf("invalid osc command %v", command)
			}
			index, err := strconv.ParseInt(command[0], 10, 64)
			if err != nil {
				return err
			}
			if index < 0 || int(index) >= len(p.osc) {
				return fmt.Errorf("invalid osc index %v", index)
			}
			if err := p.osc[index].set(command[1], command[2]); err != nil {
				return err
			}
		case "filter":
			command = command[1:]
			if len(command) != 2 {
				return fmt.Errorf("invalid key-value pair %v", command)
			}
			if err := p.filter.set(command[0], command[1]); err != nil {
				return err
			}
		case "loudness":
			command = command[1:]
			if len(command) != 2 {
				return fmt.Errorf("invalid key-value pair %v", command)
			}
			if err := p.loudness.set(command[0], command[1]); err != nil {
				return err
			}
		case "mod":
			command = command[1:]
			if len(command) != 2 {
				return fmt.Errorf("invalid key-value pair %v", command)
			}
			if err := p.mod.set(command[0], command[1]); err != nil {
				return err
			}
		case "echo":
			command = command[1:]
			if len(command) != 2 {
				return fmt.Errorf("invalid key-value pair %v", command)
			}
			if err := p.echo.set(command[0], command[1]); err != nil {
				return err
			}
		default:
			if len(command) != 2 {
				return fmt.Errorf("invalid key-value pair %v", command)
			}
			if err := p.set(command[0], command[1]); err != nil {
				return err
			}
		}
		e.Changes.Add("data")
	case "note_on":
		if len(command) != 2 {
			return fmt.Errorf("invalid note_on %v", command)
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		e.addNoteEvent(&noteEvent{kind: eventNoteOn, note: int(note)})
	case "note_off":
		if len(command) != 2 {
			return fmt.Errorf("invalid note_off %v", command)
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		e.addNoteEvent(&noteEvent{kind: eventNoteOff, note: int(note)})
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

// ----- Modulation Poller ----- //

// runModulation is the control-rate loop of the modulation router. It never
// touches the signal path directly: pitch goes through the oscillator bank's
// ramped pitch parameter, cutoff through the filter adapter's message queue.
func (e *Engine) runModulation() {
	t := time.NewTicker(modUpdateInterval)
	defer t.Stop()
	for {
		select {
		case <-e.done:
			log.Println("runModulation() ended.")
			return
		case <-t.C:
			e.applyModulation(now())
		}
	}
}

// applyModulation pushes one control-rate update into the graph. A disabled
// target gets an explicit zero so switching modulation off returns pitch and
// cutoff to their unmodulated values instead of freezing the last offset.
func (e *Engine) applyModulation(t float64) {
	e.state.Lock()
	defer e.state.Unlock()
	st := e.state
	g := st.graph
	if g.phase == graphClosed {
		return
	}
	mp := st.params.mod
	v := g.router.sample(t, g.contour.value, mp)
	depth := clamp(0, 1, mp.wheel/100)

	pitch := 0.0
	if mp.toPitch {
		pitch = v * depth * pitchModMaxCents
	}
	g.bank.setPitchMod(pitch)

	cutoff := 0.0
	if mp.toCutoff {
		cutoff = v * depth * cutoffModMaxOctaves / 2
	}
	// while the target is off, one zero push is enough; don't flood the queue
	if mp.toCutoff || cutoff != e.lastCutoffMod {
		g.adapter.PushModulationValue(cutoff)
		e.lastCutoffMod = cutoff
	}
}
