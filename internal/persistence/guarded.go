package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// BreakerConfig tunes the circuit breaker in front of a repository
type BreakerConfig struct {
	Name                string        `yaml:"name"`
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// DefaultBreakerConfig trips after five straight failures and probes again after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "runs-repo",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// GuardedRepo wraps a RunsRepo in a circuit breaker so an unavailable database
// fails fast instead of stalling every batch. ErrNotFound does not count as a failure.
type GuardedRepo struct {
	inner   RunsRepo
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedRepo wraps inner
func NewGuardedRepo(inner RunsRepo, cfg BreakerConfig, logger zerolog.Logger) *GuardedRepo {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	}
	return &GuardedRepo{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state
func (g *GuardedRepo) State() gobreaker.State {
	return g.breaker.State()
}

func (g *GuardedRepo) Save(ctx context.Context, run RunRecord, trades []position.Trade) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.inner.Save(ctx, run, trades)
	})
	return err
}

func (g *GuardedRepo) Get(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return out.(*RunRecord), nil
}

func (g *GuardedRepo) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.List(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return out.([]RunRecord), nil
}

func (g *GuardedRepo) Trades(ctx context.Context, id uuid.UUID) ([]position.Trade, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Trades(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return out.([]position.Trade), nil
}
