// Package cache stores finished backtest results keyed by everything that
// determines them, so identical reruns are served without replaying bars.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

// Store is a byte-oriented key/value store with expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and tunes the result cache
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// DefaultConfig keeps results in memory for a day
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		TTL:        24 * time.Hour,
		MaxEntries: 256,
		Redis:      RedisConfig{Prefix: "tradebot:"},
	}
}

// ResultCache caches completed backtest results
type ResultCache struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// New uses Redis when an address is configured and reachable, falling back to
// an in-memory TTL cache otherwise
func New(ctx context.Context, cfg Config, logger zerolog.Logger) *ResultCache {
	if cfg.Redis.Addr != "" {
		rc, err := NewRedisCache(ctx, cfg.Redis)
		if err == nil {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("result cache using redis")
			return NewResultCache(rc, cfg.TTL, logger)
		}
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-memory result cache")
	}
	return NewResultCache(NewTTLCache(cfg.MaxEntries), cfg.TTL, logger)
}

// NewResultCache wraps store
func NewResultCache(store Store, ttl time.Duration, logger zerolog.Logger) *ResultCache {
	return &ResultCache{store: store, ttl: ttl, logger: logger}
}

// KeyInput is everything a run's outcome depends on
type KeyInput struct {
	Params        strategy.Params
	InitialCash   float64
	Annualization float64
	Feed          market.Feed
	Signals       market.SignalSource
}

// Key derives a stable cache key. Bars and the signal seen by each bar are
// hashed, so any change to the data produces a new key.
func Key(in KeyInput) (string, error) {
	h := sha256.New()

	header, err := json.Marshal(struct {
		Params        strategy.Params `json:"params"`
		InitialCash   float64         `json:"initial_cash"`
		Annualization float64         `json:"annualization"`
		Dataset       string          `json:"dataset"`
		Bars          int             `json:"bars"`
	}{in.Params, in.InitialCash, in.Annualization, in.Feed.Name(), in.Feed.Len()})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	h.Write(header)

	signals := in.Signals
	if signals == nil {
		signals = market.NeutralSignals{}
	}

	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for i := 0; i < in.Feed.Len(); i++ {
		bar := in.Feed.At(i)
		put(uint64(bar.Timestamp.UnixNano()))
		for _, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
			put(math.Float64bits(v))
		}
		sig := signals.Lookup(i, bar.Timestamp)
		put(math.Float64bits(sig.Sentiment))
		if sig.Whale {
			put(1)
		} else {
			put(0)
		}
	}

	return "result:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns a cached result. Store failures are logged and reported as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*backtest.Result, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("result cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached result")
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &res, true
}

// Put stores a completed result. Partial results are never cached.
func (c *ResultCache) Put(ctx context.Context, key string, res *backtest.Result) error {
	if res == nil || res.Status != backtest.StatusCompleted {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		return fmt.Errorf("cache result %s: %w", res.Key(), err)
	}
	return nil
}

// Close releases the underlying store
func (c *ResultCache) Close() error {
	return c.store.Close()
}
