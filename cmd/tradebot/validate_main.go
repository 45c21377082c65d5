package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and load every dataset without running",
		RunE:  runValidate,
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	datasets, err := cfg.LoadDatasets()
	if err != nil {
		return err
	}
	for _, d := range datasets {
		log.Info().Str("dataset", d.Feed.Name()).Int("bars", d.Feed.Len()).Msg("Dataset loaded")
	}
	for _, p := range cfg.Strategies {
		log.Info().Str("strategy", p.Name).Str("kind", string(p.Kind)).Str("exit_mode", string(p.Exits.Mode)).Msg("Strategy valid")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d strategies x %d datasets = %d runs\n",
		len(cfg.Strategies), len(datasets), len(cfg.Jobs(datasets)))
	return nil
}
