package main

import (
	"context"
	"fmt"
	"os"

	"github.com/elys-network/flywheel/internal/config"
	"github.com/elys-network/flywheel/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the configuration shared by all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	LogFile string
	Config  *config.AppConfig
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// main is the entry point for the flywheel service and its admin commands.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found. Relying on OS environment variables.")
	}

	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand creates the root command for the flywheel CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flywheel",
		Short: "Fee distribution flywheel",
		Long:  "Collects protocol fees into a vault and periodically splits them into buyback, burn and liquidity.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if opts.LogFile == "" {
				logger.Initialize(cfg.LogLevel)
			} else {
				file, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				logger.InitializeWithWriter(cfg.LogLevel, file)
			}
			opts.Config = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also append logs to this file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewUpdateConfigCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewExecuteCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
