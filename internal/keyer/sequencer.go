// internal/keyer/sequencer.go
package keyer

import "time"

// SequencerState is the tone sequencer's phase.
type SequencerState int

const (
	SequencerIdle SequencerState = iota
	ToneActive
	SilenceActive
)

// String returns the human-readable name of the state.
func (s SequencerState) String() string {
	switch s {
	case SequencerIdle:
		return "idle"
	case ToneActive:
		return "tone"
	case SilenceActive:
		return "silence"
	default:
		return "unknown"
	}
}

// Element is a single Morse element.
type Element int

const (
	NoElement Element = iota
	Dit
	Dah
)

// String returns the human-readable name of the element.
func (e Element) String() string {
	switch e {
	case Dit:
		return "dit"
	case Dah:
		return "dah"
	default:
		return "none"
	}
}

// ToneOutput is the tone primitive driven by the sequencer.
type ToneOutput interface {
	StartTone(frequencyHz float64)
	StopTone()
}

// toneAction is the side effect requested by a sequencer transition.
type toneAction int

const (
	toneNone toneAction = iota
	toneStart
	toneStop
)

// sequence is the sequencer's persistent state.
type sequence struct {
	state    SequencerState
	deadline time.Time
	last     Element
	// gap is the trailing silence, fixed when the element starts
	gap time.Duration
}

// startElement begins element e at now.
func startElement(e Element, now time.Time, t Timing) sequence {
	d := t.Dit
	if e == Dah {
		d = t.Dah
	}
	return sequence{state: ToneActive, deadline: now.Add(d), last: e, gap: t.Dit}
}

// stepSequencer is the sequencer transition function. Intent is only acted on
// while idle or at the end of the trailing silence, never mid-phase. Timing is
// read only when an element starts; its trailing silence uses the dit duration
// in force at that moment.
func stepSequencer(s sequence, intent ToneIntent, now time.Time, t Timing) (next sequence, action toneAction, completed bool) {
	switch s.state {
	case SequencerIdle:
		switch intent {
		case IntentDit, DitThenDah:
			return startElement(Dit, now, t), toneStart, false
		case IntentDah, DahThenDit:
			return startElement(Dah, now, t), toneStart, false
		}
		return s, toneNone, false

	case ToneActive:
		if now.Before(s.deadline) {
			return s, toneNone, false
		}
		// The trailing silence is one dit whatever the element was.
		return sequence{state: SilenceActive, deadline: now.Add(s.gap), last: s.last, gap: s.gap}, toneStop, false

	case SilenceActive:
		if now.Before(s.deadline) {
			return s, toneNone, false
		}
		if intent.squeeze() {
			if s.last == Dit {
				return startElement(Dah, now, t), toneStart, false
			}
			return startElement(Dit, now, t), toneStart, false
		}
		return sequence{state: SequencerIdle}, toneNone, true
	}

	return s, toneNone, false
}

// Sequencer owns the tone output and the element timing state.
type Sequencer struct {
	seq       sequence
	speed     *Speed
	out       ToneOutput
	frequency float64
}

// NewSequencer creates an idle sequencer that keys out at frequencyHz.
func NewSequencer(speed *Speed, out ToneOutput, frequencyHz float64) *Sequencer {
	return &Sequencer{
		speed:     speed,
		out:       out,
		frequency: frequencyHz,
	}
}

// Update advances the sequencer and reports whether an element (tone plus its
// trailing silence) completed on this call.
func (s *Sequencer) Update(intent ToneIntent, now time.Time) bool {
	next, action, completed := stepSequencer(s.seq, intent, now, s.speed.Timing())
	s.seq = next

	switch action {
	case toneStart:
		s.out.StartTone(s.frequency)
	case toneStop:
		s.out.StopTone()
	}
	return completed
}

// State returns the current phase.
func (s *Sequencer) State() SequencerState {
	return s.seq.state
}

// LastElement returns the element most recently started, or NoElement when idle.
func (s *Sequencer) LastElement() Element {
	return s.seq.last
}

// Deadline returns when the current phase ends. Zero while idle.
func (s *Sequencer) Deadline() time.Time {
	return s.seq.deadline
}
