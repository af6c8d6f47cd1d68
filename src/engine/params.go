package engine

import (
	"encoding/json"
	"log"
	"strconv"
)

// ----- Wave Kind ----- //

const (
	waveTriangle = iota
	waveSaw
	waveSawRev
	waveSquare
	wavePulseWide
	wavePulseNarrow
)

func waveKindFromString(s string) int {
	switch s {
	case "saw":
		return waveSaw
	case "saw-rev":
		return waveSawRev
	case "square":
		return waveSquare
	case "pulse-wide":
		return wavePulseWide
	case "pulse-narrow":
		return wavePulseNarrow
	default:
		return waveTriangle
	}
}
func waveKindToString(kind int) string {
	switch kind {
	case waveSaw:
		return "saw"
	case waveSawRev:
		return "saw-rev"
	case waveSquare:
		return "square"
	case wavePulseWide:
		return "pulse-wide"
	case wavePulseNarrow:
		return "pulse-narrow"
	default:
		return "triangle"
	}
}

// ----- Octave Range ----- //

const (
	rangeLo = iota
	range32
	range16
	range8
	range4
	range2
)

func rangeFromString(s string) int {
	switch s {
	case "lo":
		return rangeLo
	case "32":
		return range32
	case "16":
		return range16
	case "4":
		return range4
	case "2":
		return range2
	default:
		return range8
	}
}
func rangeToString(r int) string {
	switch r {
	case rangeLo:
		return "lo"
	case range32:
		return "32"
	case range16:
		return "16"
	case range4:
		return "4"
	case range2:
		return "2"
	default:
		return "8"
	}
}

// rangeRatio maps the range selector to a frequency multiplier relative to
// 8'. "lo" sits two octaves below 32' for drone/modulation duty.
func rangeRatio(r int) float64 {
	switch r {
	case rangeLo:
		return 1.0 / 16
	case range32:
		return 1.0 / 4
	case range16:
		return 1.0 / 2
	case range4:
		return 2
	case range2:
		return 4
	default:
		return 1
	}
}

// ----- OSC Params ----- //

type oscParams struct {
	enabled bool
	wave    int
	rng     int
	semi    int     // -12 ~ 12
	volume  float64 // 0 ~ 10
}
type oscJSON struct {
	Enabled bool    `json:"enabled"`
	Wave    string  `json:"wave"`
	Range   string  `json:"range"`
	Semi    int     `json:"semi"`
	Volume  float64 `json:"volume"`
}

func (o *oscParams) applyJSON(data json.RawMessage) {
	var j oscJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to oscParams")
		return
	}
	o.enabled = j.Enabled
	o.wave = waveKindFromString(j.Wave)
	o.rng = rangeFromString(j.Range)
	o.semi = clampSemi(j.Semi)
	o.volume = clampFinite(0, 10, j.Volume, o.volume)
}
func (o *oscParams) toJSON() json.RawMessage {
	return toRawMessage(&oscJSON{
		Enabled: o.enabled,
		Wave:    waveKindToString(o.wave),
		Range:   rangeToString(o.rng),
		Semi:    o.semi,
		Volume:  o.volume,
	})
}
func (o *oscParams) set(key string, value string) error {
	switch key {
	case "enabled":
		o.enabled = value == "true"
	case "wave":
		o.wave = waveKindFromString(value)
	case "range":
		o.rng = rangeFromString(value)
	case "semi":
		value, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		o.semi = clampSemi(int(value))
	case "volume":
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		o.volume = clampFinite(0, 10, value, o.volume)
	}
	return nil
}

func clampSemi(v int) int {
	if v < -12 {
		return -12
	}
	if v > 12 {
		return 12
	}
	return v
}

// ----- Filter Params ----- //

type filterParams struct {
	cutoff        float64 // -4 ~ 4
	emphasis      float64 // 0 ~ 10
	contourAmount float64 // 0 ~ 10, octaves of contour
	attack        float64 // 0 ~ 10, pot position
	decay         float64 // 0 ~ 10, pot position
	sustain       float64 // 0 ~ 10
	keyTrack1     bool    // adds 1/3 tracking
	keyTrack2     bool    // adds 2/3 tracking
}
type filterJSON struct {
	Cutoff        float64 `json:"cutoff"`
	Emphasis      float64 `json:"emphasis"`
	ContourAmount float64 `json:"contourAmount"`
	Attack        float64 `json:"attack"`
	Decay         float64 `json:"decay"`
	Sustain       float64 `json:"sustain"`
	KeyTrack1     bool    `json:"keyTrack1"`
	KeyTrack2     bool    `json:"keyTrack2"`
}

func (f *filterParams) applyJSON(data json.RawMessage) {
	var j filterJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to filterParams")
		return
	}
	f.cutoff = clampFinite(-4, 4, j.Cutoff, f.cutoff)
	f.emphasis = clampFinite(0, 10, j.Emphasis, f.emphasis)
	f.contourAmount = clampFinite(0, 10, j.ContourAmount, f.contourAmount)
	f.attack = clampFinite(0, 10, j.Attack, f.attack)
	f.decay = clampFinite(0, 10, j.Decay, f.decay)
	f.sustain = clampFinite(0, 10, j.Sustain, f.sustain)
	f.keyTrack1 = j.KeyTrack1
	f.keyTrack2 = j.KeyTrack2
}
func (f *filterParams) toJSON() json.RawMessage {
	return toRawMessage(&filterJSON{
		Cutoff:        f.cutoff,
		Emphasis:      f.emphasis,
		ContourAmount: f.contourAmount,
		Attack:        f.attack,
		Decay:         f.decay,
		Sustain:       f.sustain,
		KeyTrack1:     f.keyTrack1,
		KeyTrack2:     f.keyTrack2,
	})
}
func (f *filterParams) set(key string, value string) error {
	switch key {
	case "keyTrack1":
		f.keyTrack1 = value == "true"
		return nil
	case "keyTrack2":
		f.keyTrack2 = value == "true"
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "cutoff":
		f.cutoff = clampFinite(-4, 4, v, f.cutoff)
	case "emphasis":
		f.emphasis = clampFinite(0, 10, v, f.emphasis)
	case "contourAmount":
		f.contourAmount = clampFinite(0, 10, v, f.contourAmount)
	case "attack":
		f.attack = clampFinite(0, 10, v, f.attack)
	case "decay":
		f.decay = clampFinite(0, 10, v, f.decay)
	case "sustain":
		f.sustain = clampFinite(0, 10, v, f.sustain)
	}
	return nil
}

// ----- Loudness Params ----- //

type loudnessParams struct {
	attack  float64 // 0 ~ 10, pot position
	decay   float64 // 0 ~ 10, pot position
	sustain float64 // 0 ~ 10
}
type loudnessJSON struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
}

func (l *loudnessParams) applyJSON(data json.RawMessage) {
	var j loudnessJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to loudnessParams")
		return
	}
	l.attack = clampFinite(0, 10, j.Attack, l.attack)
	l.decay = clampFinite(0, 10, j.Decay, l.decay)
	l.sustain = clampFinite(0, 10, j.Sustain, l.sustain)
}
func (l *loudnessParams) toJSON() json.RawMessage {
	return toRawMessage(&loudnessJSON{
		Attack:  l.attack,
		Decay:   l.decay,
		Sustain: l.sustain,
	})
}
func (l *loudnessParams) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "attack":
		l.attack = clampFinite(0, 10, v, l.attack)
	case "decay":
		l.decay = clampFinite(0, 10, v, l.decay)
	case "sustain":
		l.sustain = clampFinite(0, 10, v, l.sustain)
	}
	return nil
}

// ----- Modulation Params ----- //

const (
	modSourceOsc = iota
	modSourceContour
)
const (
	modSourceNoise = iota
	modSourceLfo
)
const (
	noisePink = iota
	noiseRed
)

func modSource1FromString(s string) int {
	if s == "contour" {
		return modSourceContour
	}
	return modSourceOsc
}
func modSource1ToString(v int) string {
	if v == modSourceContour {
		return "contour"
	}
	return "osc"
}
func modSource2FromString(s string) int {
	if s == "lfo" {
		return modSourceLfo
	}
	return modSourceNoise
}
func modSource2ToString(v int) string {
	if v == modSourceLfo {
		return "lfo"
	}
	return "noise"
}
func noiseKindFromString(s string) int {
	if s == "red" {
		return noiseRed
	}
	return noisePink
}
func noiseKindToString(v int) string {
	if v == noiseRed {
		return "red"
	}
	return "pink"
}

type modParams struct {
	source1   int     // free osc or contour envelope
	source2   int     // noise or LFO
	oscWave   int     // waveform of the free-running mod osc
	lfoWave   int     // triangle or square
	lfoRate   float64 // 0 ~ 10, exponential to [0.2,20] Hz
	noiseKind int     // pink or red
	mix       float64 // 0 ~ 10, source1 <-> source2
	wheel     float64 // 0 ~ 100
	toPitch   bool
	toCutoff  bool
}
type modJSON struct {
	Source1   string  `json:"source1"`
	Source2   string  `json:"source2"`
	OscWave   string  `json:"oscWave"`
	LfoWave   string  `json:"lfoWave"`
	LfoRate   float64 `json:"lfoRate"`
	NoiseKind string  `json:"noiseKind"`
	Mix       float64 `json:"mix"`
	Wheel     float64 `json:"wheel"`
	ToPitch   bool    `json:"toPitch"`
	ToCutoff  bool    `json:"toCutoff"`
}

func (m *modParams) applyJSON(data json.RawMessage) {
	var j modJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to modParams")
		return
	}
	m.source1 = modSource1FromString(j.Source1)
	m.source2 = modSource2FromString(j.Source2)
	m.oscWave = waveKindFromString(j.OscWave)
	m.lfoWave = waveKindFromString(j.LfoWave)
	m.lfoRate = clampFinite(0, 10, j.LfoRate, m.lfoRate)
	m.noiseKind = noiseKindFromString(j.NoiseKind)
	m.mix = clampFinite(0, 10, j.Mix, m.mix)
	m.wheel = clampFinite(0, 100, j.Wheel, m.wheel)
	m.toPitch = j.ToPitch
	m.toCutoff = j.ToCutoff
}
func (m *modParams) toJSON() json.RawMessage {
	return toRawMessage(&modJSON{
		Source1:   modSource1ToString(m.source1),
		Source2:   modSource2ToString(m.source2),
		OscWave:   waveKindToString(m.oscWave),
		LfoWave:   waveKindToString(m.lfoWave),
		LfoRate:   m.lfoRate,
		NoiseKind: noiseKindToString(m.noiseKind),
		Mix:       m.mix,
		Wheel:     m.wheel,
		ToPitch:   m.toPitch,
		ToCutoff:  m.toCutoff,
	})
}
func (m *modParams) set(key string, value string) error {
	switch key {
	case "source1":
		m.source1 = modSource1FromString(value)
	case "source2":
		m.source2 = modSource2FromString(value)
	case "oscWave":
		m.oscWave = waveKindFromString(value)
	case "lfoWave":
		m.lfoWave = waveKindFromString(value)
	case "noiseKind":
		m.noiseKind = noiseKindFromString(value)
	case "toPitch":
		m.toPitch = value == "true"
	case "toCutoff":
		m.toCutoff = value == "true"
	case "lfoRate":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		m.lfoRate = clampFinite(0, 10, v, m.lfoRate)
	case "mix":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		m.mix = clampFinite(0, 10, v, m.mix)
	case "wheel":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		m.wheel = clampFinite(0, 100, v, m.wheel)
	}
	return nil
}

func newModParams() *modParams {
	return &modParams{
		source1:   modSourceOsc,
		source2:   modSourceLfo,
		oscWave:   waveTriangle,
		lfoWave:   waveTriangle,
		lfoRate:   5,
		noiseKind: noisePink,
		mix:       0,
		wheel:     0,
		toPitch:   false,
		toCutoff:  false,
	}
}

// ----- Echo Params ----- //

type echoParams struct {
	enabled      bool
	delay        float64 // ms
	feedbackGain float64 // [0,1)
	mix          float64 // [0,1]
}
type echoJSON struct {
	Enabled      bool    `json:"enabled"`
	Delay        float64 `json:"delay"`
	FeedbackGain float64 `json:"feedbackGain"`
	Mix          float64 `json:"mix"`
}

func (l *echoParams) applyJSON(data json.RawMessage) {
	var j echoJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to echoParams")
		return
	}
	l.enabled = j.Enabled
	l.delay = clampFinite(0, 2000, j.Delay, l.delay)
	l.feedbackGain = clampFinite(0, 0.99, j.FeedbackGain, l.feedbackGain)
	l.mix = clampFinite(0, 1, j.Mix, l.mix)
}
func (l *echoParams) toJSON() json.RawMessage {
	return toRawMessage(&echoJSON{
		Enabled:      l.enabled,
		Delay:        l.delay,
		FeedbackGain: l.feedbackGain,
		Mix:          l.mix,
	})
}
func (l *echoParams) set(key string, value string) error {
	if key == "enabled" {
		l.enabled = value == "true"
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "delay":
		l.delay = clampFinite(0, 2000, v, l.delay)
	case "feedbackGain":
		l.feedbackGain = clampFinite(0, 0.99, v, l.feedbackGain)
	case "mix":
		l.mix = clampFinite(0, 1, v, l.mix)
	}
	return nil
}

// ----- Params ----- //

// params is the read-only snapshot of every user-facing control. The control
// side mutates it under the state lock; the audio side only reads.
type params struct {
	osc         []*oscParams
	filter      *filterParams
	loudness    *loudnessParams
	mod         *modParams
	echo        *echoParams
	glideOn     bool
	glideAmount float64 // 0 ~ 10, power-law to ms
	decaySwitch bool
	master      float64 // 0 ~ 10
	pitchBend   float64 // 0 ~ 100, 50 = center
}

func newParams() *params {
	return &params{
		osc: []*oscParams{
			{enabled: true, wave: waveSaw, rng: range8, volume: 10},
			{enabled: false, wave: waveSaw, rng: range8, volume: 10},
			{enabled: false, wave: waveTriangle, rng: range8, volume: 10},
		},
		filter:      &filterParams{cutoff: 0, emphasis: 2, contourAmount: 5, attack: 1, decay: 4, sustain: 5},
		loudness:    &loudnessParams{attack: 0.5, decay: 4, sustain: 8},
		mod:         newModParams(),
		echo:        &echoParams{},
		glideOn:     false,
		glideAmount: 0,
		decaySwitch: false,
		master:      5,
		pitchBend:   50,
	}
}

func (p *params) set(key string, value string) error {
	switch key {
	case "glide_on":
		p.glideOn = value == "true"
	case "decay_switch":
		p.decaySwitch = value == "true"
	case "glide":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		p.glideAmount = clampFinite(0, 10, v, p.glideAmount)
	case "master":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		p.master = clampFinite(0, 10, v, p.master)
	case "pitch_bend":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		p.pitchBend = clampFinite(0, 100, v, p.pitchBend)
	}
	return nil
}

type paramsJSON struct {
	Oscs        []json.RawMessage `json:"oscs"`
	Filter      json.RawMessage   `json:"filter"`
	Loudness    json.RawMessage   `json:"loudness"`
	Mod         json.RawMessage   `json:"mod"`
	Echo        json.RawMessage   `json:"echo"`
	GlideOn     bool              `json:"glideOn"`
	Glide       float64           `json:"glide"`
	DecaySwitch bool              `json:"decaySwitch"`
	Master      float64           `json:"master"`
	PitchBend   float64           `json:"pitchBend"`
}

func (p *params) applyJSON(data json.RawMessage) {
	var j paramsJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to params")
		return
	}
	if len(j.Oscs) == len(p.osc) {
		for i, oj := range j.Oscs {
			p.osc[i].applyJSON(oj)
		}
	} else {
		log.Println("failed to apply JSON to osc params")
	}
	p.filter.applyJSON(j.Filter)
	p.loudness.applyJSON(j.Loudness)
	p.mod.applyJSON(j.Mod)
	p.echo.applyJSON(j.Echo)
	p.glideOn = j.GlideOn
	p.glideAmount = clampFinite(0, 10, j.Glide, p.glideAmount)
	p.decaySwitch = j.DecaySwitch
	p.master = clampFinite(0, 10, j.Master, p.master)
	p.pitchBend = clampFinite(0, 100, j.PitchBend, p.pitchBend)
}
func (p *params) toJSON() json.RawMessage {
	oscJsons := make([]json.RawMessage, len(p.osc))
	for i, o := range p.osc {
		oscJsons[i] = o.toJSON()
	}
	return toRawMessage(&paramsJSON{
		Oscs:        oscJsons,
		Filter:      p.filter.toJSON(),
		Loudness:    p.loudness.toJSON(),
		Mod:         p.mod.toJSON(),
		Echo:        p.echo.toJSON(),
		GlideOn:     p.glideOn,
		Glide:       p.glideAmount,
		DecaySwitch: p.decaySwitch,
		Master:      p.master,
		PitchBend:   p.pitchBend,
	})
}
