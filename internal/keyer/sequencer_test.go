package keyer

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// recordingOutput counts tone commands.
type recordingOutput struct {
	on        bool
	starts    int
	stops     int
	frequency float64
}

func (r *recordingOutput) StartTone(frequencyHz float64) {
	r.on = true
	r.starts++
	r.frequency = frequencyHz
}

func (r *recordingOutput) StopTone() {
	r.on = false
	r.stops++
}

func TestStepSequencer_IdleStarts(t *testing.T) {
	timing := TimingForWPM(20, DahDitRatio)

	tests := []struct {
		intent       ToneIntent
		wantState    SequencerState
		wantLast     Element
		wantDeadline time.Time
		wantAction   toneAction
	}{
		{Silence, SequencerIdle, NoElement, time.Time{}, toneNone},
		{IntentDit, ToneActive, Dit, at(60), toneStart},
		{DitThenDah, ToneActive, Dit, at(60), toneStart},
		{IntentDah, ToneActive, Dah, at(180), toneStart},
		{DahThenDit, ToneActive, Dah, at(180), toneStart},
	}

	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			next, action, completed := stepSequencer(sequence{}, tt.intent, at(0), timing)
			if next.state != tt.wantState {
				t.Errorf("state = %v, want %v", next.state, tt.wantState)
			}
			if next.last != tt.wantLast {
				t.Errorf("last = %v, want %v", next.last, tt.wantLast)
			}
			if !next.deadline.Equal(tt.wantDeadline) {
				t.Errorf("deadline = %v, want %v", next.deadline, tt.wantDeadline)
			}
			if action != tt.wantAction {
				t.Errorf("action = %v, want %v", action, tt.wantAction)
			}
			if completed {
				t.Error("completed = true, want false")
			}
		})
	}
}

func TestStepSequencer_ToneHoldsUntilDeadline(t *testing.T) {
	timing := TimingForWPM(20, DahDitRatio)
	s := startElement(Dah, at(0), timing)

	// Intent changes mid-tone are ignored.
	next, action, _ := stepSequencer(s, Silence, at(179), timing)
	if next != s || action != toneNone {
		t.Errorf("stepSequencer() before deadline = (%+v, %v), want unchanged", next, action)
	}

	next, action, _ = stepSequencer(s, Silence, at(180), timing)
	if next.state != SilenceActive {
		t.Errorf("state = %v, want %v", next.state, SilenceActive)
	}
	if action != toneStop {
		t.Errorf("action = %v, want toneStop", action)
	}
	// Trailing silence is one dit even after a dah.
	if !next.deadline.Equal(at(240)) {
		t.Errorf("deadline = %v, want %v", next.deadline, at(240))
	}
}

func TestStepSequencer_SilenceEnd(t *testing.T) {
	timing := TimingForWPM(20, DahDitRatio)

	tests := []struct {
		name          string
		last          Element
		intent        ToneIntent
		wantState     SequencerState
		wantLast      Element
		wantDeadline  time.Time
		wantAction    toneAction
		wantCompleted bool
	}{
		{"silence", Dit, Silence, SequencerIdle, NoElement, time.Time{}, toneNone, true},
		{"dit held", Dit, IntentDit, SequencerIdle, NoElement, time.Time{}, toneNone, true},
		{"dah held", Dah, IntentDah, SequencerIdle, NoElement, time.Time{}, toneNone, true},
		{"squeeze after dit", Dit, DitThenDah, ToneActive, Dah, at(300), toneStart, false},
		{"squeeze after dah", Dah, DitThenDah, ToneActive, Dit, at(180), toneStart, false},
		{"reverse squeeze after dah", Dah, DahThenDit, ToneActive, Dit, at(180), toneStart, false},
		{"reverse squeeze after dit", Dit, DahThenDit, ToneActive, Dah, at(300), toneStart, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sequence{state: SilenceActive, deadline: at(120), last: tt.last, gap: timing.Dit}

			next, action, completed := stepSequencer(s, tt.intent, at(119), timing)
			if next != s || action != toneNone || completed {
				t.Fatalf("stepSequencer() before deadline changed state: %+v", next)
			}

			next, action, completed = stepSequencer(s, tt.intent, at(120), timing)
			if next.state != tt.wantState {
				t.Errorf("state = %v, want %v", next.state, tt.wantState)
			}
			if next.last != tt.wantLast {
				t.Errorf("last = %v, want %v", next.last, tt.wantLast)
			}
			if !next.deadline.Equal(tt.wantDeadline) {
				t.Errorf("deadline = %v, want %v", next.deadline, tt.wantDeadline)
			}
			if action != tt.wantAction {
				t.Errorf("action = %v, want %v", action, tt.wantAction)
			}
			if completed != tt.wantCompleted {
				t.Errorf("completed = %v, want %v", completed, tt.wantCompleted)
			}
		})
	}
}

func TestStepSequencer_NoRelianceOnDahRatio(t *testing.T) {
	timing := Timing{WPM: 20, Dit: 50 * time.Millisecond, Dah: 70 * time.Millisecond}

	s, _, _ := stepSequencer(sequence{}, IntentDah, at(0), timing)
	if !s.deadline.Equal(at(70)) {
		t.Errorf("dah deadline = %v, want %v", s.deadline, at(70))
	}
	s, _, _ = stepSequencer(s, IntentDah, at(70), timing)
	if !s.deadline.Equal(at(120)) {
		t.Errorf("silence deadline = %v, want %v", s.deadline, at(120))
	}
}

func TestSequencer_DrivesOutput(t *testing.T) {
	out := &recordingOutput{}
	seq := NewSequencer(NewSpeed(20, DahDitRatio), out, 700)

	if seq.Update(IntentDit, at(0)) {
		t.Error("Update() completed on start")
	}
	if !out.on || out.starts != 1 || out.frequency != 700 {
		t.Errorf("after start: on=%v starts=%d freq=%v", out.on, out.starts, out.frequency)
	}
	if seq.State() != ToneActive || seq.LastElement() != Dit {
		t.Errorf("State() = %v LastElement() = %v", seq.State(), seq.LastElement())
	}
	if !seq.Deadline().Equal(at(60)) {
		t.Errorf("Deadline() = %v, want %v", seq.Deadline(), at(60))
	}

	seq.Update(Silence, at(60))
	if out.on || out.stops != 1 {
		t.Errorf("after tone end: on=%v stops=%d", out.on, out.stops)
	}

	if !seq.Update(Silence, at(120)) {
		t.Error("Update() at silence end completed = false, want true")
	}
	if seq.State() != SequencerIdle || seq.LastElement() != NoElement {
		t.Errorf("State() = %v LastElement() = %v, want idle/none", seq.State(), seq.LastElement())
	}

	// Completion is signalled exactly once.
	if seq.Update(Silence, at(200)) {
		t.Error("Update() while idle completed = true")
	}
}

func TestSequencerState_String(t *testing.T) {
	tests := []struct {
		state SequencerState
		want  string
	}{
		{SequencerIdle, "idle"},
		{ToneActive, "tone"},
		{SilenceActive, "silence"},
		{SequencerState(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SequencerState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestElement_String(t *testing.T) {
	if Dit.String() != "dit" || Dah.String() != "dah" || NoElement.String() != "none" {
		t.Errorf("Element strings = %q %q %q", Dit, Dah, NoElement)
	}
}
