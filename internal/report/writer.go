// Package report writes backtest batch artifacts to disk
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
	"github.com/razaquegoraya007/trading-bot-env/internal/report/perf"
)

// Writer handles writing backtest artifacts to disk
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates a writer that places each batch under a dated directory
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir, now: time.Now}
}

// tradeLine is one row of trades.jsonl
type tradeLine struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Dataset  string `json:"dataset"`
	position.Trade
}

// summaryEntry is one element of summary.json
type summaryEntry struct {
	RunID         string          `json:"run_id"`
	Strategy      string          `json:"strategy"`
	Dataset       string          `json:"dataset"`
	Status        backtest.Status `json:"status"`
	BarsProcessed int             `json:"bars_processed"`
	FinalEquity   float64         `json:"final_equity"`
	Summary       perf.Summary    `json:"summary"`
	OpenPosition  *position.State `json:"open_position,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// WriteBatch writes trades.jsonl, equity.csv, summary.json and report.md and
// returns the directory holding them. Nil results are skipped.
func (w *Writer) WriteBatch(results []*backtest.Result, alerts []perf.Alert) (string, error) {
	dir := filepath.Join(w.outputDir, w.now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	runs := make([]*backtest.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			runs = append(runs, r)
		}
	}

	if err := w.writeTrades(filepath.Join(dir, "trades.jsonl"), runs); err != nil {
		return dir, err
	}
	if err := w.writeEquity(filepath.Join(dir, "equity.csv"), runs); err != nil {
		return dir, err
	}
	if err := w.writeSummary(filepath.Join(dir, "summary.json"), runs); err != nil {
		return dir, err
	}
	if err := w.writeReport(filepath.Join(dir, "report.md"), runs, alerts); err != nil {
		return dir, err
	}
	return dir, nil
}

func (w *Writer) writeTrades(path string, runs []*backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, r := range runs {
		for _, t := range r.Trades {
			line := tradeLine{RunID: r.RunID.String(), Strategy: r.Strategy, Dataset: r.Dataset, Trade: t}
			if err := enc.Encode(line); err != nil {
				return fmt.Errorf("failed to write trade: %w", err)
			}
		}
	}
	return nil
}

func (w *Writer) writeEquity(path string, runs []*backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create equity file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Write([]string{"run_id", "strategy", "dataset", "index", "timestamp", "equity"})
	for _, r := range runs {
		for _, p := range r.EquityCurve {
			cw.Write([]string{
				r.RunID.String(),
				r.Strategy,
				r.Dataset,
				strconv.Itoa(p.Index),
				p.Timestamp.UTC().Format(time.RFC3339),
				strconv.FormatFloat(p.Equity, 'f', -1, 64),
			})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write equity curve: %w", err)
	}
	return nil
}

func (w *Writer) writeSummary(path string, runs []*backtest.Result) error {
	entries := make([]summaryEntry, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, summaryEntry{
			RunID:         r.RunID.String(),
			Strategy:      r.Strategy,
			Dataset:       r.Dataset,
			Status:        r.Status,
			BarsProcessed: r.BarsProcessed,
			FinalEquity:   r.FinalEquity,
			Summary:       r.Summary,
			OpenPosition:  r.OpenPosition,
			Error:         r.Error,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func (w *Writer) writeReport(path string, runs []*backtest.Result, alerts []perf.Alert) error {
	if err := os.WriteFile(path, []byte(w.generateMarkdownReport(runs, alerts)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// generateMarkdownReport renders the batch as a markdown table followed by alerts
func (w *Writer) generateMarkdownReport(runs []*backtest.Result, alerts []perf.Alert) string {
	var report strings.Builder

	report.WriteString("# Backtest Report\n\n")
	report.WriteString(fmt.Sprintf("**Generated**: %s\n", w.now().UTC().Format("2006-01-02 15:04:05 UTC")))
	report.WriteString(fmt.Sprintf("**Runs**: %d\n\n", len(runs)))

	report.WriteString("## Results\n\n")
	report.WriteString("| Strategy | Dataset | Status | Bars | Trades | Final Equity | Win Rate | Profit Factor | Max DD | Sharpe |\n")
	report.WriteString("|----------|---------|--------|------|--------|--------------|----------|---------------|--------|--------|\n")
	for _, r := range runs {
		report.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %.2f | %.1f%% | %s | %.2f%% | %s |\n",
			r.Strategy, r.Dataset, r.Status, r.BarsProcessed, len(r.Trades), r.FinalEquity,
			r.Summary.WinRate, r.Summary.ProfitFactor, r.Summary.MaxDrawdown*100, r.Summary.Sharpe))
	}
	report.WriteString("\n")

	var failed []*backtest.Result
	for _, r := range runs {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		report.WriteString("## Errors\n\n")
		for _, r := range failed {
			report.WriteString(fmt.Sprintf("- **%s**: %s\n", r.Key(), r.Error))
		}
		report.WriteString("\n")
	}

	report.WriteString("## Alerts\n\n")
	if len(alerts) == 0 {
		report.WriteString("No alerts.\n")
		return report.String()
	}
	for _, a := range alerts {
		report.WriteString(fmt.Sprintf("- [%s] **%s** %s\n", a.Severity, a.Run, a.Message))
	}
	return report.String()
}
