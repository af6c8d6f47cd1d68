package engine

import (
	"context"
	"log"
	"math"

	"gitlab.com/gomidi/rtmididrv"
)

// ----- MIDI Translator ----- //

const (
	statusNoteOff       = 0x8
	statusNoteOn        = 0x9
	statusControlChange = 0xB
	statusPitchBend     = 0xE
)
const ccModWheel = 1
const pitchBendCenter = 8192

// NoteSink is the trigger surface the translator drives; it is exactly the
// surface the on-screen keyboard uses, so hardware and UI input are
// indistinguishable downstream.
type NoteSink interface {
	NoteOn(note int)
	NoteOff(note int)
	SetModWheel(depth float64)
	SetPitchBend(position float64)
}

var _ NoteSink = (*Engine)(nil)

// MidiTranslator turns raw MIDI bytes into engine trigger calls. It keeps
// its own held-note stack with the same last-note-priority behavior as the
// voice manager.
type MidiTranslator struct {
	held noteStack
	sink NoteSink
}

// NewMidiTranslator ...
func NewMidiTranslator(sink NoteSink) *MidiTranslator {
	return &MidiTranslator{sink: sink}
}

// Handle parses one MIDI message. Unrecognized or malformed bytes are
// ignored silently.
func (t *MidiTranslator) Handle(data []byte) {
	if len(data) < 3 {
		return
	}
	switch data[0] >> 4 {
	case statusNoteOn:
		if data[2] == 0 {
			// velocity 0 means note-off
			t.noteOff(int(data[1]))
			return
		}
		t.noteOn(int(data[1]))
	case statusNoteOff:
		t.noteOff(int(data[1]))
	case statusControlChange:
		if data[1] == ccModWheel {
			t.sink.SetModWheel(modWheelCurve(data[2]))
		}
	case statusPitchBend:
		raw := int(data[1]&0x7f) | int(data[2]&0x7f)<<7
		t.sink.SetPitchBend(pitchBendToControl(raw))
	}
}

func (t *MidiTranslator) noteOn(note int) {
	t.held.push(note)
	t.sink.NoteOn(note)
}

func (t *MidiTranslator) noteOff(note int) {
	t.held.remove(note)
	t.sink.NoteOff(note)
}

// modWheelCurve maps CC1 [0,127] to modulation depth [0,100] through a
// two-segment power curve: fine control in the lower half, fast opening in
// the upper half.
func modWheelCurve(v byte) float64 {
	n := float64(v) / 127
	if n <= 0.5 {
		return 50 * math.Pow(n*2, 2)
	}
	return 50 + 50*math.Pow((n-0.5)*2, 0.5)
}

// pitchBendToControl maps the 14-bit bend value onto the [0,100] wheel
// range, symmetric about center: 8192 -> 50, 0 -> 0, 16383 -> ~100.
func pitchBendToControl(raw int) float64 {
	return clamp(0, 100, 50*(1+float64(raw-pitchBendCenter)/pitchBendCenter))
}

// ----- Hardware Input ----- //

// ListenToMidiIn opens the first hardware MIDI input and streams its raw
// bytes until ctx is canceled.
func ListenToMidiIn(ctx context.Context) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			if err := drv.Close(); err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		if len(ins) == 0 {
			log.Println("WARN: no MIDI IN port found")
			return
		}
		in := ins[0]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			if err := in.Close(); err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			ch <- data
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			if err := in.StopListening(); err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		defer close(ch)
		<-ctx.Done()
	}()
	return ch
}
