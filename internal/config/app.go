// Package config loads the backtest application configuration from YAML
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/data/cache"
	"github.com/razaquegoraya007/trading-bot-env/internal/infrastructure/db"
	httpiface "github.com/razaquegoraya007/trading-bot-env/internal/interfaces/http"
	"github.com/razaquegoraya007/trading-bot-env/internal/report/perf"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

// AppConfig represents the complete backtest configuration
type AppConfig struct {
	InitialCash   float64                `yaml:"initial_cash"`
	Annualization float64                `yaml:"annualization"`
	Concurrency   int                    `yaml:"concurrency"`
	OutputDir     string                 `yaml:"output_dir"`
	Strategies    []strategy.Params      `yaml:"-"`
	Datasets      []DatasetConfig        `yaml:"datasets"`
	Database      db.Config              `yaml:"database"`
	Cache         cache.Config           `yaml:"cache"`
	HTTP          httpiface.ServerConfig `yaml:"http"`
	Alerts        perf.Thresholds        `yaml:"alerts"`
}

// DatasetConfig names one bar series and its optional signal files
type DatasetConfig struct {
	Name      string `yaml:"name"`
	Bars      string `yaml:"bars"`
	Sentiment string `yaml:"sentiment"`
	Whale     string `yaml:"whale"`
}

// DefaultAppConfig returns a configuration that runs every strategy family with
// reference parameters and keeps persistence disabled
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		InitialCash:   backtest.DefaultInitialCash,
		Annualization: 0,
		Concurrency:   4,
		OutputDir:     "out/backtest",
		Strategies: []strategy.Params{
			strategy.DefaultParams(strategy.MeanReversion),
			strategy.DefaultParams(strategy.Momentum),
			strategy.DefaultParams(strategy.SentimentGated),
		},
		Database: db.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		HTTP:     httpiface.DefaultServerConfig(),
		Alerts:   perf.DefaultThresholds(),
	}
}

// UnmarshalYAML seeds each strategy entry with its family defaults so a file only
// needs to name what it changes
func (c *AppConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain AppConfig
	var raw struct {
		plain      `yaml:",inline"`
		Strategies []yaml.Node `yaml:"strategies"`
	}
	raw.plain = plain(*c)
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = AppConfig(raw.plain)

	if raw.Strategies == nil {
		return nil
	}
	c.Strategies = make([]strategy.Params, 0, len(raw.Strategies))
	for i := range raw.Strategies {
		var head struct {
			Kind strategy.Kind `yaml:"strategy"`
		}
		if err := raw.Strategies[i].Decode(&head); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		p := strategy.DefaultParams(head.Kind)
		if err := raw.Strategies[i].Decode(&p); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		c.Strategies = append(c.Strategies, p)
	}
	return nil
}

// Load reads configuration from a YAML file, applies environment overrides and
// validates the result
func Load(configPath string) (*AppConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultAppConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// ApplyEnvOverrides applies TRADEBOT_*, PG_* and REDIS_* environment overrides
func (c *AppConfig) ApplyEnvOverrides() {
	if v := os.Getenv("TRADEBOT_INITIAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.InitialCash = f
		}
	}
	if v := os.Getenv("TRADEBOT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv("TRADEBOT_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("TRADEBOT_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("TRADEBOT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}

	db.ApplyEnvOverrides(&c.Database)
}

// Validate checks the configuration and joins every failure
func (c *AppConfig) Validate() error {
	var errs []error

	if !(c.InitialCash > 0) {
		errs = append(errs, &strategy.ConfigError{Field: "initial_cash", Reason: fmt.Sprintf("must be positive, got %v", c.InitialCash)})
	}
	if c.Annualization < 0 {
		errs = append(errs, fmt.Errorf("annualization cannot be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	if len(c.Strategies) == 0 {
		errs = append(errs, fmt.Errorf("at least one strategy is required"))
	}

	names := make(map[string]bool)
	for i, p := range c.Strategies {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("strategies[%d] %s: %w", i, p.Name, err))
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("strategies[%d]: duplicate name %q", i, p.Name))
		}
		names[p.Name] = true
	}

	datasets := make(map[string]bool)
	for i, d := range c.Datasets {
		if d.Bars == "" {
			errs = append(errs, fmt.Errorf("datasets[%d]: bars path is required", i))
		}
		if d.Name != "" && datasets[d.Name] {
			errs = append(errs, fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name))
		}
		datasets[d.Name] = true
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache: ttl must be positive"))
	}

	return errors.Join(errs...)
}

// PerfConfig returns the metric settings shared by every run
func (c *AppConfig) PerfConfig() perf.Config {
	return perf.Config{Annualization: c.Annualization}
}
