// internal/keyer/timing.go
package keyer

import (
	"sync/atomic"
	"time"
)

// PARIS timing constants
const (
	// SecondsPerMinute is used for WPM calculations
	SecondsPerMinute = 60.0
	// DitsPerWord is the standard word "PARIS" = 50 dit units
	DitsPerWord = 50.0
	// DahDitRatio is the conventional dah length in dits
	DahDitRatio = 3.0
)

// Operating speed range
const (
	MinWPM = 5
	MaxWPM = 60
)

// Timing holds the element durations read by the sequencer.
// Dah is usually three dits but the sequencer only ever reads both fields.
type Timing struct {
	WPM int
	Dit time.Duration
	Dah time.Duration
}

// TimingForWPM derives dit and dah durations from a words-per-minute value using
// PARIS timing. wpm must be positive; callers validate before calling.
func TimingForWPM(wpm int, dahRatio float64) Timing {
	wordTimeSec := SecondsPerMinute / float64(wpm)
	dit := time.Duration(float64(time.Second) * wordTimeSec / DitsPerWord)
	return Timing{
		WPM: wpm,
		Dit: dit,
		Dah: time.Duration(float64(dit) * dahRatio),
	}
}

// Speed publishes the current Timing to the sequencer.
// SetSpeed may be called from any goroutine; the sequencer samples it only when
// it computes a new deadline, so a change never stretches an element in flight.
type Speed struct {
	timing   atomic.Pointer[Timing]
	dahRatio float64
}

// NewSpeed creates a Speed at the given rate. A non-positive dahRatio selects
// DahDitRatio.
func NewSpeed(wpm int, dahRatio float64) *Speed {
	if dahRatio <= 0 {
		dahRatio = DahDitRatio
	}
	s := &Speed{dahRatio: dahRatio}
	s.SetSpeed(wpm)
	return s
}

// SetSpeed replaces the element durations and returns the new Timing.
// wpm must be positive.
func (s *Speed) SetSpeed(wpm int) Timing {
	t := TimingForWPM(wpm, s.dahRatio)
	s.timing.Store(&t)
	return t
}

// Timing returns the current durations.
func (s *Speed) Timing() Timing {
	return *s.timing.Load()
}

// WPM returns the current speed.
func (s *Speed) WPM() int {
	return s.timing.Load().WPM
}
