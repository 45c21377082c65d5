// Package log reports batch progress through zerolog and an optional terminal bar
package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
)

// ProgressIndicator reports finished backtest jobs. It implements backtest.Progress.
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	logger    zerolog.Logger
	bar       io.Writer // nil disables the terminal bar
	startTime time.Time
	now       func() time.Time
	failed    int
}

var _ backtest.Progress = (*ProgressIndicator)(nil)

// ProgressConfig configures progress indicator behavior
type ProgressConfig struct {
	// Bar receives a redrawn progress line, usually os.Stderr on a terminal
	Bar io.Writer
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(name string, logger zerolog.Logger, config ProgressConfig) *ProgressIndicator {
	return &ProgressIndicator{
		name:      name,
		logger:    logger,
		bar:       config.Bar,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// JobDone logs one finished run and redraws the bar
func (pi *ProgressIndicator) JobDone(done, total int, r *backtest.Result) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	elapsed := pi.now().Sub(pi.startTime)
	eta := estimateETA(done, total, elapsed)

	event := pi.logger.Info()
	if r.Err != nil {
		pi.failed++
		event = pi.logger.Warn().Str("error", r.Error)
	}
	event.
		Str("batch", pi.name).
		Int("done", done).
		Int("total", total).
		Str("strategy", r.Strategy).
		Str("dataset", r.Dataset).
		Str("status", string(r.Status)).
		Float64("final_equity", r.FinalEquity).
		Int("trades", len(r.Trades)).
		Dur("eta", eta).
		Msg("Backtest job finished")

	if pi.bar != nil {
		fmt.Fprint(pi.bar, "\r\033[K"+renderBar(pi.name, done, total, eta))
		if done == total {
			fmt.Fprintln(pi.bar)
		}
	}
}

// Finish logs the batch summary
func (pi *ProgressIndicator) Finish(total int) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.logger.Info().
		Str("batch", pi.name).
		Int("jobs", total).
		Int("failed", pi.failed).
		Dur("duration", pi.now().Sub(pi.startTime).Round(time.Millisecond)).
		Msg("Backtest batch completed")
}

// Failed returns the number of jobs that ended with an error
func (pi *ProgressIndicator) Failed() int {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.failed
}

func estimateETA(done, total int, elapsed time.Duration) time.Duration {
	if done <= 0 || total <= done {
		return 0
	}
	perJob := elapsed / time.Duration(done)
	return (perJob * time.Duration(total-done)).Round(time.Millisecond)
}

func renderBar(name string, done, total int, eta time.Duration) string {
	var output strings.Builder
	output.WriteString(name)

	if total > 0 {
		percentage := float64(done) / float64(total) * 100
		barWidth := 20
		filled := barWidth * done / total

		output.WriteString(" [")
		for i := 0; i < barWidth; i++ {
			if i < filled {
				output.WriteString("█")
			} else {
				output.WriteString("░")
			}
		}
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", done, total, percentage))
	}

	if eta > 0 {
		if eta > time.Hour {
			output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Minute)))
		} else {
			output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
		}
	}
	return output.String()
}
