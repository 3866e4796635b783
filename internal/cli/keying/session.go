// Package keying assembles a keying session from settings: paddles, sidetone,
// keyer loop, monitor and speed console.
package keying

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ColonelBlimp/cwkeyer/internal/audio"
	"github.com/ColonelBlimp/cwkeyer/internal/config"
	"github.com/ColonelBlimp/cwkeyer/internal/console"
	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/ColonelBlimp/cwkeyer/internal/keyer"
	"github.com/ColonelBlimp/cwkeyer/internal/paddle"
	"github.com/ColonelBlimp/cwkeyer/internal/recovery"
	"github.com/charmbracelet/log"
)

var ErrSettingsRequired = errors.New("settings are required")

// Session owns the components of one keying run.
type Session struct {
	settings *config.Settings
	logger   *log.Logger
	out      io.Writer

	speed    *keyer.Speed
	keyer    *keyer.Keyer
	sidetone audio.Sidetone
	paddles  paddle.Reader
	monitor  *cw.Decoder
	console  *console.Console
}

// NewSession opens the paddles and the sidetone device described by s.
// Decoded text and console replies are written to out.
func NewSession(s *config.Settings, logger *log.Logger, out io.Writer) (*Session, error) {
	if s == nil {
		return nil, ErrSettingsRequired
	}

	side, err := audio.New(s.AudioBackend, sidetoneConfig(s))
	if err != nil {
		return nil, err
	}
	if err := side.Init(); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	pads, err := paddle.Open(paddleConfig(s))
	if err != nil {
		_ = side.Close()
		return nil, fmt.Errorf("paddles: %w", err)
	}

	sess, err := newSession(s, logger, out, side, pads)
	if err != nil {
		_ = pads.Close()
		_ = side.Close()
		return nil, err
	}
	return sess, nil
}

func newSession(s *config.Settings, logger *log.Logger, out io.Writer, side audio.Sidetone, pads paddle.Reader) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	out = &syncWriter{w: out}

	speed := keyer.NewSpeed(s.WPM, s.DahRatio)
	k, err := keyer.New(keyer.Config{
		Paddles:     pads,
		Output:      side,
		Speed:       speed,
		FrequencyHz: s.ToneFrequency,
		Logger:      logger.WithPrefix("keyer"),
	})
	if err != nil {
		return nil, fmt.Errorf("create keyer: %w", err)
	}

	sess := &Session{
		settings: s,
		logger:   logger,
		out:      out,
		speed:    speed,
		keyer:    k,
		sidetone: side,
		paddles:  pads,
		console:  console.New(speed, k, out, logger.WithPrefix("console")),
	}

	if s.Monitor {
		d, err := cw.NewDecoder(cw.DecoderConfig{
			DitDahBoundary:    s.DitDahBoundary,
			InterCharBoundary: s.InterCharBoundary,
			CharWordBoundary:  s.CharWordBoundary,
		}, speed)
		if err != nil {
			return nil, fmt.Errorf("create monitor: %w", err)
		}
		d.SetCallback(func(o cw.DecodedOutput) {
			fmt.Fprint(out, string(o.Character))
		})
		k.SetMonitor(d)
		sess.monitor = d
	}

	return sess, nil
}

func sidetoneConfig(s *config.Settings) audio.Config {
	return audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    uint32(s.Channels),
		BufferSize:  uint32(s.BufferSize),
		Volume:      s.Volume,
	}
}

func paddleConfig(s *config.Settings) paddle.Config {
	return paddle.Config{
		Source:    s.PaddleSource,
		DitPin:    s.DitPin,
		DahPin:    s.DahPin,
		ActiveLow: s.ActiveLow,
		Swap:      s.SwapPaddles,
	}
}

// Speed returns the speed shared by the keyer, monitor and console.
func (s *Session) Speed() *keyer.Speed { return s.speed }

// Keyer returns the keyer loop.
func (s *Session) Keyer() *keyer.Keyer { return s.keyer }

// PollInterval returns the configured keyer loop period.
func (s *Session) PollInterval() time.Duration {
	return time.Duration(s.settings.PollIntervalUs) * time.Microsecond
}

// Run starts the sidetone, serves console commands from in (if not nil) and
// runs the keyer until ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	if err := s.sidetone.Start(ctx); err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	if in != nil {
		recovery.Go(func() {
			if err := s.console.Run(ctx, in); err != nil {
				s.logger.Warn("console stopped", "err", err)
			}
		}, s.sidetone.StopTone)
	}

	defer recovery.HandlePanicFunc(s.sidetone.StopTone)
	return s.keyer.Run(ctx, s.PollInterval())
}

// ApplySettings takes over changes from a reloaded configuration. Only the
// speed is applied live; other settings need a restart.
func (s *Session) ApplySettings(ns *config.Settings, err error) {
	if err != nil {
		s.logger.Warn("ignoring config change", "err", err)
		return
	}
	if ns.WPM == s.speed.WPM() {
		return
	}
	t := s.speed.SetSpeed(ns.WPM)
	s.logger.Info("speed changed from config", "wpm", t.WPM, "dit", t.Dit, "dah", t.Dah)
}

// Close releases the paddles and the audio device.
func (s *Session) Close() error {
	s.sidetone.StopTone()
	return errors.Join(s.paddles.Close(), s.sidetone.Close())
}

// ListAudioDevices returns the names of the playback devices, indexed as
// device_index expects.
func ListAudioDevices() ([]string, error) {
	side := audio.NewMalgo(audio.DefaultConfig())
	if err := side.Init(); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	defer side.Close()

	infos, err := side.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names, nil
}

// syncWriter serializes writes from the keyer and console goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
