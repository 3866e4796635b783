// Package paddle reads iambic paddle contacts.
package paddle

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSource = errors.New("unknown paddle source")
	ErrSamePin       = errors.New("dit and dah pins must differ")
)

// Sources
const (
	SourceGPIO = "gpio"
	SourceNone = "none"
)

// Config describes where the paddle contacts are wired.
type Config struct {
	Source    string
	DitPin    int
	DahPin    int
	ActiveLow bool // contact pulls the line to ground
	Swap      bool // left-handed operators
}

// Reader samples both contacts. It satisfies keyer.PaddleReader.
type Reader interface {
	Read() (dit, dah bool)
	Close() error
}

// Pin is the subset of gpio.Pin the reader needs.
type Pin interface {
	Get() bool
	Close() error
}

// Open returns the reader for cfg.Source.
func Open(cfg Config) (Reader, error) {
	switch cfg.Source {
	case SourceGPIO, "":
		return OpenGPIO(cfg)
	case SourceNone:
		return None{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
}

// GPIO reads paddles wired to two input pins.
type GPIO struct {
	dit, dah  Pin
	activeLow bool
}

// OpenGPIO exports both pins as inputs.
func OpenGPIO(cfg Config) (*GPIO, error) {
	if cfg.DitPin == cfg.DahPin {
		return nil, ErrSamePin
	}

	dit, err := openInput(cfg.DitPin)
	if err != nil {
		return nil, fmt.Errorf("open dit pin %d: %w", cfg.DitPin, err)
	}
	dah, err := openInput(cfg.DahPin)
	if err != nil {
		_ = dit.Close()
		return nil, fmt.Errorf("open dah pin %d: %w", cfg.DahPin, err)
	}

	return NewGPIO(dit, dah, cfg.ActiveLow, cfg.Swap), nil
}

// NewGPIO wraps already opened pins.
func NewGPIO(dit, dah Pin, activeLow, swap bool) *GPIO {
	if swap {
		dit, dah = dah, dit
	}
	return &GPIO{dit: dit, dah: dah, activeLow: activeLow}
}

// Read returns the pressed state of each paddle.
func (g *GPIO) Read() (dit, dah bool) {
	return g.pressed(g.dit), g.pressed(g.dah)
}

func (g *GPIO) pressed(p Pin) bool {
	return p.Get() != g.activeLow
}

// Close unexports both pins.
func (g *GPIO) Close() error {
	return errors.Join(g.dit.Close(), g.dah.Close())
}

// None never reports a pressed paddle.
type None struct{}

// Read always returns false, false.
func (None) Read() (dit, dah bool) { return false, false }

// Close is a no-op.
func (None) Close() error { return nil }
