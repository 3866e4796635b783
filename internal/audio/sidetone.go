// internal/audio/sidetone.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("sidetone not initialized")
	ErrAlreadyRunning = errors.New("sidetone already running")
	ErrNotRunning     = errors.New("sidetone not running")
	ErrUnknownBackend = errors.New("unknown audio backend")
)

// Backends
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
)

// Config holds sidetone output configuration
type Config struct {
	DeviceIndex int     // -1 for default device (malgo only)
	SampleRate  uint32  // e.g., 48000
	Channels    uint32  // 1 for mono, 2 for stereo
	BufferSize  uint32  // frames per callback
	Volume      float64 // peak amplitude 0.0-1.0
}

// DefaultConfig returns low-latency defaults for a sidetone
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  256,
		Volume:      0.5,
	}
}

// Sidetone is an audio output the keyer can key.
type Sidetone interface {
	StartTone(frequencyHz float64)
	StopTone()
	Init() error
	Start(ctx context.Context) error
	Stop() error
	Close() error
	IsRunning() bool
}

// New returns the sidetone for the named backend.
func New(backend string, cfg Config) (Sidetone, error) {
	switch backend {
	case BackendMalgo, "":
		return NewMalgo(cfg), nil
	case BackendOto:
		return NewOto(cfg), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// MalgoSidetone plays the oscillator through a miniaudio playback device
type MalgoSidetone struct {
	config  Config
	osc     *Oscillator
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex
}

// NewMalgo creates a new malgo sidetone instance
func NewMalgo(cfg Config) *MalgoSidetone {
	return &MalgoSidetone{
		config: cfg,
		osc:    NewOscillator(float64(cfg.SampleRate), int(cfg.Channels), cfg.Volume),
	}
}

// StartTone keys the sidetone on.
func (s *MalgoSidetone) StartTone(frequencyHz float64) { s.osc.StartTone(frequencyHz) }

// StopTone keys the sidetone off.
func (s *MalgoSidetone) StopTone() { s.osc.StopTone() }

// Oscillator returns the tone source.
func (s *MalgoSidetone) Oscillator() *Oscillator { return s.osc }

// Init initializes the audio backend
func (s *MalgoSidetone) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	s.ctx = ctx

	return nil
}

// ListDevices returns available playback devices
func (s *MalgoSidetone) ListDevices() ([]malgo.DeviceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := s.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return infos, nil
}

// Start opens the playback device. It stops when ctx is done.
func (s *MalgoSidetone) Start(ctx context.Context) error {
	s.mu.RLock()
	running, initialized := s.running, s.ctx != nil
	s.mu.RUnlock()
	if running {
		return ErrAlreadyRunning
	}
	if !initialized {
		return ErrNotInitialized
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = s.config.SampleRate
	deviceConfig.PeriodSizeInFrames = s.config.BufferSize
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = s.config.Channels

	if s.config.DeviceIndex >= 0 {
		devices, err := s.ListDevices()
		if err != nil {
			return err
		}
		if s.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				s.config.DeviceIndex, len(devices))
		}
		deviceConfig.Playback.DeviceID = devices[s.config.DeviceIndex].ID.Pointer()
	}

	onSendFrames := func(outputSamples, _ []byte, _ uint32) {
		if out := bytesAsFloat32(outputSamples); out != nil {
			s.osc.Fill(out)
		}
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	s.mu.Lock()
	s.device = device
	s.running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	return nil
}

// Stop silences and closes the playback device
func (s *MalgoSidetone) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}

	s.osc.StopTone()
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}

	s.running = false
	return nil
}

// Close releases all audio resources
func (s *MalgoSidetone) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.osc.StopTone()
	if s.running && s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
		s.running = false
	}

	if s.ctx != nil {
		if err := s.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		s.ctx.Free()
		s.ctx = nil
	}

	return nil
}

// IsRunning returns true if playback is active
func (s *MalgoSidetone) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
