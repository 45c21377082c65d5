package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/razaquegoraya007/trading-bot-env/internal/infrastructure/db"
	httpiface "github.com/razaquegoraya007/trading-bot-env/internal/interfaces/http"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP monitor",
		Long:  "Serves /health, /metrics, /runs, /runs/{id} and /runs/{id}/trades over stored backtest runs",
		RunE:  runServe,
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := db.NewManager(ctx, cfg.Database, log.Logger)
	if err != nil {
		return err
	}
	defer manager.Close()
	if !manager.IsEnabled() {
		log.Warn().Msg("Database disabled; /runs endpoints will return 503")
	}

	server := httpiface.NewServer(cfg.HTTP, manager.Runs(), manager.Health(), httpiface.NewMetricsRegistry(), version, log.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
