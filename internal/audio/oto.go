// internal/audio/oto.go
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSidetone streams the oscillator through an oto player.
// oto allows one context per process, so Init must only be called once.
type OtoSidetone struct {
	config  Config
	osc     *Oscillator
	ctx     *oto.Context
	player  *oto.Player
	running bool
	mu      sync.RWMutex
}

// NewOto creates a new oto sidetone instance
func NewOto(cfg Config) *OtoSidetone {
	return &OtoSidetone{
		config: cfg,
		osc:    NewOscillator(float64(cfg.SampleRate), int(cfg.Channels), cfg.Volume),
	}
}

// StartTone keys the sidetone on.
func (s *OtoSidetone) StartTone(frequencyHz float64) { s.osc.StartTone(frequencyHz) }

// StopTone keys the sidetone off.
func (s *OtoSidetone) StopTone() { s.osc.StopTone() }

// Oscillator returns the tone source.
func (s *OtoSidetone) Oscillator() *Oscillator { return s.osc }

// bufferDuration converts the configured frame count to time.
func (s *OtoSidetone) bufferDuration() time.Duration {
	if s.config.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.config.BufferSize) * time.Second / time.Duration(s.config.SampleRate)
}

// Init creates the oto context and waits for the device to be ready
func (s *OtoSidetone) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := &oto.NewContextOptions{
		SampleRate:   int(s.config.SampleRate),
		ChannelCount: int(s.config.Channels),
		Format:       oto.FormatFloat32LE,
		BufferSize:   s.bufferDuration(),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("init oto context: %w", err)
	}
	<-ready
	s.ctx = ctx

	return nil
}

// Start begins streaming. It stops when ctx is done.
func (s *OtoSidetone) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.ctx == nil {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	player := s.ctx.NewPlayer(s.osc)
	// Keep the player's own buffer at one period so keying stays tight.
	player.SetBufferSize(int(s.config.BufferSize * s.config.Channels * 4))
	player.Play()

	s.player = player
	s.running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	return nil
}

// Stop silences and closes the player
func (s *OtoSidetone) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}

	s.osc.StopTone()
	if s.player != nil {
		s.player.Pause()
		if err := s.player.Close(); err != nil {
			return fmt.Errorf("close player: %w", err)
		}
		s.player = nil
	}

	s.running = false
	return nil
}

// Close stops playback and suspends the context
func (s *OtoSidetone) Close() error {
	if s.IsRunning() {
		if err := s.Stop(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		if err := s.ctx.Suspend(); err != nil {
			return fmt.Errorf("suspend oto context: %w", err)
		}
	}
	return nil
}

// IsRunning returns true if playback is active
func (s *OtoSidetone) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
