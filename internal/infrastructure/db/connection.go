package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
	"github.com/razaquegoraya007/trading-bot-env/internal/persistence/postgres"
)

// Manager manages database connections and repository instances
type Manager struct {
	db     *sqlx.DB
	config Config
	runs   persistence.RunsRepo
	health *healthChecker
}

// NewManager opens Postgres, applies the schema when configured to, and wires the
// runs repository. A disabled configuration yields a manager with no repository.
func NewManager(ctx context.Context, config Config, logger zerolog.Logger) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, health: &healthChecker{}}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	conn, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(conn, config)

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := conn.PingContext(startupCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if config.Migrate {
		if err := postgres.EnsureSchema(startupCtx, conn); err != nil {
			conn.Close()
			return nil, err
		}
		logger.Debug().Msg("Backtest schema ensured")
	}

	return NewManagerWithDB(conn, config, logger), nil
}

func configurePool(conn *sqlx.DB, config Config) {
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}

// NewManagerWithDB wires repositories over an open connection
func NewManagerWithDB(conn *sqlx.DB, config Config, logger zerolog.Logger) *Manager {
	runs := persistence.NewGuardedRepo(postgres.NewRunsRepo(conn, config.QueryTimeout), config.Breaker, logger)
	return &Manager{
		db:     conn,
		config: config,
		runs:   runs,
		health: &healthChecker{db: conn, timeout: config.QueryTimeout},
	}
}

// Runs returns the breaker-guarded runs repository, or nil if database is disabled
func (m *Manager) Runs() persistence.RunsRepo {
	return m.runs
}

// Health returns the health checker interface
func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// DB returns the underlying database connection (for migrations, etc.)
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// IsEnabled reports whether runs are being persisted
func (m *Manager) IsEnabled() bool {
	return m.db != nil
}

// Close releases the connection pool
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// healthChecker pings the database and counts stored runs; a nil db means
// persistence is switched off
type healthChecker struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	check := persistence.HealthCheck{Healthy: true, LastCheck: time.Now()}
	if h.db == nil {
		check.Errors = []string{"database persistence disabled"}
		return check
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, fmt.Sprintf("ping failed: %v", err))
	} else if err := h.db.GetContext(ctx, &check.StoredRuns, "SELECT COUNT(*) FROM backtest_runs"); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, fmt.Sprintf("count runs: %v", err))
	}

	stats := h.db.Stats()
	check.ConnectionPool = map[string]int{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"waits":    int(stats.WaitCount),
	}
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	return check
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(ctx)
}
