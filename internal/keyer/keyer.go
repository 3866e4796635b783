// internal/keyer/keyer.go
package keyer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrPaddlesRequired indicates a paddle reader is required
	ErrPaddlesRequired = errors.New("paddle reader is required")
	// ErrOutputRequired indicates a tone output is required
	ErrOutputRequired = errors.New("tone output is required")
	// ErrSpeedRequired indicates a speed source is required
	ErrSpeedRequired = errors.New("speed is required")
	// ErrInvalidFrequency indicates the tone frequency must be positive
	ErrInvalidFrequency = errors.New("tone frequency must be positive")
	// ErrInvalidInterval indicates the poll interval must be positive
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// PaddleReader samples the two paddle contacts. true means closed.
type PaddleReader interface {
	Read() (dit, dah bool)
}

// Clock supplies monotonic time readings.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ToneEvent is a tone state change as keyed by the sequencer.
type ToneEvent struct {
	// ToneOn is true when the tone starts, false when it stops
	ToneOn bool
	// Timestamp is the tick time at which the change happened
	Timestamp time.Time
	// Duration is the length of the preceding state (zero for the first event)
	Duration time.Duration
}

// Monitor observes keyed output. HandleToneEvent is called on every tone change
// and Poll once per tick so the monitor can act on silence.
type Monitor interface {
	HandleToneEvent(event ToneEvent)
	Poll(now time.Time)
}

// Config holds the collaborators of a Keyer.
type Config struct {
	Paddles     PaddleReader
	Output      ToneOutput
	Speed       *Speed
	FrequencyHz float64
	// Clock defaults to the system clock
	Clock Clock
	// Logger defaults to log.Default()
	Logger *log.Logger
}

// Keyer runs the paddle interpreter and tone sequencer once per tick.
type Keyer struct {
	paddles PaddleReader
	clock   Clock
	speed   *Speed
	logger  *log.Logger

	interp Interpreter
	seq    *Sequencer
	tap    *toneTap

	monitor   Monitor
	completed atomic.Uint64
}

// New creates a Keyer from cfg.
func New(cfg Config) (*Keyer, error) {
	if cfg.Paddles == nil {
		return nil, ErrPaddlesRequired
	}
	if cfg.Output == nil {
		return nil, ErrOutputRequired
	}
	if cfg.Speed == nil {
		return nil, ErrSpeedRequired
	}
	if cfg.FrequencyHz <= 0 {
		return nil, ErrInvalidFrequency
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	k := &Keyer{
		paddles: cfg.Paddles,
		clock:   cfg.Clock,
		speed:   cfg.Speed,
		logger:  cfg.Logger,
	}
	k.tap = &toneTap{out: cfg.Output, keyer: k}
	k.seq = NewSequencer(cfg.Speed, k.tap, cfg.FrequencyHz)
	return k, nil
}

// SetMonitor attaches a monitor. Set before calling Run.
func (k *Keyer) SetMonitor(m Monitor) {
	k.monitor = m
}

// Tick performs one bounded unit of work: sample the paddles, advance both
// state machines and return whether an element completed.
func (k *Keyer) Tick(now time.Time) bool {
	dit, dah := k.paddles.Read()

	prev := k.interp.State()
	intent := k.interp.Update(dit, dah)
	if state := k.interp.State(); state != prev {
		k.logger.Debug("paddle", "from", prev, "to", state, "intent", intent)
	}

	k.tap.at = now
	completed := k.seq.Update(intent, now)
	if completed {
		k.completed.Add(1)
	}

	if k.monitor != nil {
		k.monitor.Poll(now)
	}
	return completed
}

// Run ticks every interval until ctx is done. The tone is silenced on return.
func (k *Keyer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	t := k.speed.Timing()
	if interval > t.Dit/100 {
		k.logger.Warn("poll interval exceeds 1% of dit duration, timing may jitter",
			"interval", interval, "dit", t.Dit)
	}
	k.logger.Info("keyer running", "wpm", t.WPM, "dit", t.Dit, "dah", t.Dah, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer func() { k.tap.silence(k.clock.Now()) }()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keyer stopped", "completed", k.Completed())
			return nil
		case <-ticker.C:
			k.Tick(k.clock.Now())
		}
	}
}

// Completed returns how many times the sequencer signalled completion, that is
// how many runs of keying have returned to idle.
func (k *Keyer) Completed() uint64 {
	return k.completed.Load()
}

// PaddleState returns the interpreter state.
func (k *Keyer) PaddleState() PaddleState {
	return k.interp.State()
}

// SequencerState returns the sequencer phase.
func (k *Keyer) SequencerState() SequencerState {
	return k.seq.State()
}

// toneTap forwards sequencer tone commands to the real output and reports
// them to the monitor stamped with the current tick time.
type toneTap struct {
	out   ToneOutput
	keyer *Keyer

	at       time.Time
	on       bool
	lastEdge time.Time
}

func (t *toneTap) StartTone(frequencyHz float64) {
	t.out.StartTone(frequencyHz)
	t.edge(true)
}

func (t *toneTap) StopTone() {
	t.out.StopTone()
	t.edge(false)
}

func (t *toneTap) edge(on bool) {
	var d time.Duration
	if !t.lastEdge.IsZero() {
		d = t.at.Sub(t.lastEdge)
	}
	t.on = on
	t.lastEdge = t.at

	k := t.keyer
	k.logger.Debug("tone", "on", on, "element", k.seq.LastElement(), "after", d)
	if k.monitor != nil {
		k.monitor.HandleToneEvent(ToneEvent{ToneOn: on, Timestamp: t.at, Duration: d})
	}
}

// silence stops a sounding tone during shutdown.
func (t *toneTap) silence(now time.Time) {
	if t.on {
		t.at = now
		t.StopTone()
	}
}
