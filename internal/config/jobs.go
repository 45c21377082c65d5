package config

import (
	"fmt"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/data"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
)

// Dataset is a loaded bar series with its joined signals
type Dataset struct {
	Feed    market.Feed
	Signals market.SignalSource
}

// LoadDatasets reads every configured dataset from disk
func (c *AppConfig) LoadDatasets() ([]Dataset, error) {
	out := make([]Dataset, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		feed, err := data.LoadBarsCSV(d.Bars, d.Name)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		signals, err := data.LoadSignals(d.Sentiment, d.Whale)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", feed.Name(), err)
		}
		out = append(out, Dataset{Feed: feed, Signals: signals})
	}
	return out, nil
}

// Jobs pairs every strategy with every dataset, strategies varying fastest
func (c *AppConfig) Jobs(datasets []Dataset) []backtest.Job {
	jobs := make([]backtest.Job, 0, len(datasets)*len(c.Strategies))
	for _, d := range datasets {
		for _, p := range c.Strategies {
			jobs = append(jobs, backtest.Job{Params: p, Feed: d.Feed, Signals: d.Signals})
		}
	}
	return jobs
}
