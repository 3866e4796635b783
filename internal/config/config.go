// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	AppName       = "cwkeyer"
	EnvPrefix     = "CWKEYER"
	ConfigType    = "yaml"
	DefaultConfig = `# CW Keyer Configuration

# Sidetone output
audio_backend: "malgo"  # malgo or oto
device_index: -1        # -1 for default playback device (malgo only)
sample_rate: 48000      # Output sample rate in Hz
channels: 1             # Number of channels (1=mono)
buffer_size: 256        # Frames per audio period, smaller = tighter keying
tone_frequency: 600     # Sidetone frequency in Hz
volume: 0.5             # Sidetone amplitude (0.0-1.0)

# Timing
wpm: 20                 # Initial speed, changes here are applied while running
dah_ratio: 3.0          # Dah length in dits

# Paddles
paddle_source: "gpio"   # gpio or none
dit_pin: 17             # GPIO number of the dit contact
dah_pin: 27             # GPIO number of the dah contact
active_low: true        # Contact pulls the line to ground
swap_paddles: false     # Exchange dit and dah (left-handed)
poll_interval_us: 200   # Keyer loop period in microseconds
                        # Keep below 1% of a dit: 600us at 20 WPM, 200us at 60 WPM

# Monitor (decodes your own keying)
monitor: true
dit_dah_boundary: 2.0     # Elements longer than this many dits are dahs
inter_char_boundary: 2.0  # Gaps longer than this many dits end a character
char_word_boundary: 5.0   # Gaps longer than this many dits end a word

# Output
watch_config: true      # Reload wpm when this file changes
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Sidetone output
	AudioBackend  string  `mapstructure:"audio_backend"`
	DeviceIndex   int     `mapstructure:"device_index"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	Channels      int     `mapstructure:"channels"`
	BufferSize    int     `mapstructure:"buffer_size"`
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	Volume        float64 `mapstructure:"volume"`

	// Timing
	WPM      int     `mapstructure:"wpm"`
	DahRatio float64 `mapstructure:"dah_ratio"`

	// Paddles
	PaddleSource   string `mapstructure:"paddle_source"`
	DitPin         int    `mapstructure:"dit_pin"`
	DahPin         int    `mapstructure:"dah_pin"`
	ActiveLow      bool   `mapstructure:"active_low"`
	SwapPaddles    bool   `mapstructure:"swap_paddles"`
	PollIntervalUs int    `mapstructure:"poll_interval_us"`

	// Monitor
	Monitor           bool    `mapstructure:"monitor"`
	DitDahBoundary    float64 `mapstructure:"dit_dah_boundary"`
	InterCharBoundary float64 `mapstructure:"inter_char_boundary"`
	CharWordBoundary  float64 `mapstructure:"char_word_boundary"`

	// Output
	WatchConfig bool `mapstructure:"watch_config"`
	Debug       bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwkeyer/
// Any key can be overridden from the environment, e.g. CWKEYER_WPM=25.
func Init() error {
	// Set defaults
	viper.SetDefault("audio_backend", "malgo")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 256)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("volume", 0.5)
	viper.SetDefault("wpm", 20)
	viper.SetDefault("dah_ratio", 3.0)
	viper.SetDefault("paddle_source", "gpio")
	viper.SetDefault("dit_pin", 17)
	viper.SetDefault("dah_pin", 27)
	viper.SetDefault("active_low", true)
	viper.SetDefault("swap_paddles", false)
	viper.SetDefault("poll_interval_us", 200)
	viper.SetDefault("monitor", true)
	viper.SetDefault("dit_dah_boundary", 2.0)
	viper.SetDefault("inter_char_boundary", 2.0)
	viper.SetDefault("char_word_boundary", 5.0)
	viper.SetDefault("watch_config", true)
	viper.SetDefault("debug", false)

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Watch reloads the config file whenever it changes on disk and passes the
// re-validated settings to onChange. Invalid edits arrive as an error and the
// caller keeps its previous settings.
func Watch(onChange func(*Settings, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Get())
	})
	viper.WatchConfig()
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Sidetone output
	if s.AudioBackend != "malgo" && s.AudioBackend != "oto" {
		errs = append(errs, fmt.Errorf("audio_backend must be malgo or oto, got %q", s.AudioBackend))
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.Volume < 0.0 || s.Volume > 1.0 {
		errs = append(errs, fmt.Errorf("volume must be between 0.0 and 1.0, got %v", s.Volume))
	}

	// Timing
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.DahRatio < 2.0 || s.DahRatio > 5.0 {
		errs = append(errs, fmt.Errorf("dah_ratio must be between 2.0 and 5.0, got %v", s.DahRatio))
	}

	// Paddles
	switch s.PaddleSource {
	case "gpio":
		if s.DitPin < 0 || s.DahPin < 0 {
			errs = append(errs, fmt.Errorf("dit_pin and dah_pin must not be negative, got %d and %d", s.DitPin, s.DahPin))
		}
		if s.DitPin == s.DahPin {
			errs = append(errs, fmt.Errorf("dit_pin and dah_pin must differ, both are %d", s.DitPin))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("paddle_source must be gpio or none, got %q", s.PaddleSource))
	}
	if s.PollIntervalUs < 50 || s.PollIntervalUs > 10000 {
		errs = append(errs, fmt.Errorf("poll_interval_us must be between 50 and 10000, got %d", s.PollIntervalUs))
	}

	// Monitor
	if s.DitDahBoundary <= 1.0 || s.DitDahBoundary >= s.DahRatio {
		errs = append(errs, fmt.Errorf("dit_dah_boundary must be between 1.0 and dah_ratio (%v), got %v", s.DahRatio, s.DitDahBoundary))
	}
	if s.InterCharBoundary <= 1.0 {
		errs = append(errs, fmt.Errorf("inter_char_boundary must be greater than 1.0, got %v", s.InterCharBoundary))
	}
	if s.CharWordBoundary <= s.InterCharBoundary {
		errs = append(errs, fmt.Errorf("char_word_boundary (%v) must be greater than inter_char_boundary (%v)", s.CharWordBoundary, s.InterCharBoundary))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
