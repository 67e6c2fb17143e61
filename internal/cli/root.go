// Package cli wires the command-line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgescribe/edgescribe/internal/config"
)

// NewRootCmd builds the command tree. Config loading happens once here
// so every subcommand sees the same resolved settings.
func NewRootCmd() *cobra.Command {
	var cfgPath string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "edgescribe",
		Short: "Capture, transcribe, and summarize meetings entirely on this machine",
		Long: "edgescribe records meeting audio in fixed segments, transcribes each\n" +
			"segment with a local Whisper model, and periodically condenses the\n" +
			"transcript with a local LLM. Nothing leaves the machine.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigPath(), "config file path")

	rootCmd.AddCommand(newRunCmd(func() *config.Config { return cfg }))
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newDoctorCmd(func() *config.Config { return cfg }))

	return rootCmd
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
