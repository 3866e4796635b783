// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/cwkeyer/internal/cli/keying"
	"github.com/ColonelBlimp/cwkeyer/internal/config"
	"github.com/ColonelBlimp/cwkeyer/internal/recovery"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cwkeyer",
	Short: "Iambic Morse keyer with sidetone",
	Long: `An iambic (mode A) Morse keyer. Reads dit and dah paddles, keys a sidetone
and prints what you send. Type "help" while running for speed commands.`,
	RunE:         runKeyer,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 600, "sidetone frequency in Hz")
	rootCmd.PersistentFlags().IntP("wpm", "w", 20, "keying speed in words per minute")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
	rootCmd.PersistentFlags().String("backend", "malgo", "audio backend (malgo or oto)")
	rootCmd.PersistentFlags().String("paddles", "gpio", "paddle source (gpio or none)")
	rootCmd.PersistentFlags().Int("dit-pin", 17, "GPIO number of the dit paddle")
	rootCmd.PersistentFlags().Int("dah-pin", 27, "GPIO number of the dah paddle")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("tone_frequency", rootCmd.PersistentFlags().Lookup("frequency"))
	viper.BindPFlag("wpm", rootCmd.PersistentFlags().Lookup("wpm"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("audio_backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("paddle_source", rootCmd.PersistentFlags().Lookup("paddles"))
	viper.BindPFlag("dit_pin", rootCmd.PersistentFlags().Lookup("dit-pin"))
	viper.BindPFlag("dah_pin", rootCmd.PersistentFlags().Lookup("dah-pin"))

	rootCmd.AddCommand(devicesCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command, debug bool) *log.Logger {
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		ReportTimestamp: true,
		Prefix:          config.AppName,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func runKeyer(cmd *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cmd, settings.Debug)
	recovery.SetLogger(logger)

	sess, err := keying.NewSession(settings, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("close session", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.WatchConfig && viper.ConfigFileUsed() != "" {
		config.Watch(sess.ApplySettings)
		logger.Debug("watching config", "file", viper.ConfigFileUsed())
	}

	return sess.Run(ctx, cmd.InOrStdin())
}
