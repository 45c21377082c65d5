package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "tradebot"
	version = "v0.4.0"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic strategy backtest engine",
		Version: version,
		Long: `tradebot walks OHLCV bar series one bar at a time, evaluates mean-reversion,
momentum and sentiment strategies against them, and reports ending equity,
win rate, profit factor, max drawdown and Sharpe for every run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			return setupLogging(level, format)
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "auto", "Log format (auto|console|json)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// setupLogging configures the global zerolog logger; auto picks the console
// writer on a terminal and JSON otherwise
func setupLogging(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch format {
	case "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "auto":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		} else {
			log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		}
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}
