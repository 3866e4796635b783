// internal/keyer/paddle.go
// Package keyer implements an iambic Morse keyer: a paddle interpreter that turns
// two switch inputs into a tone intent, and a tone sequencer that turns the intent
// into a timed on/off tone.
package keyer

// PaddleState is the interpreter's view of which paddles are being sent.
type PaddleState int

const (
	PaddleIdle PaddleState = iota
	SendingDit
	SendingDah
	Squeezing
)

// String returns the human-readable name of the state.
func (s PaddleState) String() string {
	switch s {
	case PaddleIdle:
		return "idle"
	case SendingDit:
		return "sending_dit"
	case SendingDah:
		return "sending_dah"
	case Squeezing:
		return "squeezing"
	default:
		return "unknown"
	}
}

// ToneIntent is the pattern that should currently be playing.
// It is a level signal re-derived every tick, not a queue.
type ToneIntent int

const (
	Silence ToneIntent = iota
	IntentDit
	IntentDah
	DitThenDah
	DahThenDit
)

// String returns the human-readable name of the intent.
func (i ToneIntent) String() string {
	switch i {
	case Silence:
		return "silence"
	case IntentDit:
		return "dit"
	case IntentDah:
		return "dah"
	case DitThenDah:
		return "dit_then_dah"
	case DahThenDit:
		return "dah_then_dit"
	default:
		return "unknown"
	}
}

// squeeze reports whether the intent asks for alternating elements.
func (i ToneIntent) squeeze() bool {
	return i == DitThenDah || i == DahThenDit
}

// nextPaddle is the interpreter transition function. The current intent is only
// consulted while squeezing, where it is held until a paddle releases.
// Inputs are taken as-is: contact bounce produces short spurious elements.
func nextPaddle(state PaddleState, intent ToneIntent, dit, dah bool) (PaddleState, ToneIntent) {
	switch state {
	case PaddleIdle:
		if dit {
			return SendingDit, IntentDit
		}
		if dah {
			return SendingDah, IntentDah
		}
		return PaddleIdle, Silence

	case SendingDit:
		switch {
		case !dit && !dah:
			return PaddleIdle, Silence
		case dit && dah:
			return Squeezing, DitThenDah
		}
		return SendingDit, IntentDit

	case SendingDah:
		switch {
		case !dit && !dah:
			return PaddleIdle, Silence
		case dit && dah:
			return Squeezing, DahThenDit
		}
		return SendingDah, IntentDah

	case Squeezing:
		// Releasing either paddle ends the squeeze outright.
		if !dit || !dah {
			return PaddleIdle, Silence
		}
		return Squeezing, intent
	}

	return PaddleIdle, Silence
}

// Interpreter owns the paddle state machine.
// The zero value is an idle interpreter.
type Interpreter struct {
	state  PaddleState
	intent ToneIntent
}

// Update samples both paddles and returns the current tone intent.
func (in *Interpreter) Update(dit, dah bool) ToneIntent {
	in.state, in.intent = nextPaddle(in.state, in.intent, dit, dah)
	return in.intent
}

// State returns the current paddle state (diagnostics only).
func (in *Interpreter) State() PaddleState {
	return in.state
}

// Intent returns the intent produced by the last Update.
func (in *Interpreter) Intent() ToneIntent {
	return in.intent
}

// Reset returns the interpreter to idle.
func (in *Interpreter) Reset() {
	in.state = PaddleIdle
	in.intent = Silence
}
