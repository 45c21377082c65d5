// Package data loads bar feeds and external signal tables from CSV files.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
)

// CSVReader handles reading historical data from CSV files
type CSVReader struct {
	dateFormats []string // Support multiple date formats
}

// NewCSVReader creates a new CSV reader
func NewCSVReader() *CSVReader {
	return &CSVReader{
		dateFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04",
			"2006-01-02",
		},
	}
}

// LoadBarsCSV reads an OHLCV file into a feed named after the dataset
func LoadBarsCSV(path, name string) (*market.SliceFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bars file: %w", err)
	}
	defer f.Close()

	bars, err := NewCSVReader().ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return market.NewSliceFeed(name, bars), nil
}

// LoadSignals builds a daily signal table from an optional sentiment file and an
// optional whale file. Missing paths leave every bar neutral.
func LoadSignals(sentimentPath, whalePath string) (*market.DailySignals, error) {
	signals := market.NewDailySignals()
	r := NewCSVReader()

	load := func(path string, read func(io.Reader, *market.DailySignals) error) error {
		if path == "" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open signal file: %w", err)
		}
		defer f.Close()
		if err := read(f, signals); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}

	if err := load(sentimentPath, r.ReadSentiment); err != nil {
		return nil, err
	}
	if err := load(whalePath, r.ReadWhales); err != nil {
		return nil, err
	}
	return signals, nil
}

// ReadBars parses a header-driven OHLCV table. Only timestamp and close are
// required; missing open, high and low default to close and volume to zero.
// Row order is preserved so the runner can reject unordered feeds.
func (r *CSVReader) ReadBars(rd io.Reader) ([]market.Bar, error) {
	cr, columns, err := r.open(rd, "timestamp", "close")
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		bar, err := r.parseBar(record, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// ReadSentiment parses date,sentiment rows into signals
func (r *CSVReader) ReadSentiment(rd io.Reader, signals *market.DailySignals) error {
	cr, columns, err := r.open(rd, "timestamp", "sentiment")
	if err != nil {
		return err
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		ts, err := r.parseTimestamp(field(record, columns, "timestamp"))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		score, err := parseFloat(field(record, columns, "sentiment"), 0)
		if err != nil {
			return fmt.Errorf("line %d: sentiment: %w", line, err)
		}
		signals.SetSentiment(ts, score)
	}
}

// ReadWhales parses timestamp,whale rows into signals. Date-only rows flag the
// whole calendar day so daily alert files still gate intraday bars.
func (r *CSVReader) ReadWhales(rd io.Reader, signals *market.DailySignals) error {
	cr, columns, err := r.open(rd, "timestamp", "whale")
	if err != nil {
		return err
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		raw := field(record, columns, "timestamp")
		ts, err := r.parseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		active, err := parseBool(field(record, columns, "whale"))
		if err != nil {
			return fmt.Errorf("line %d: whale: %w", line, err)
		}
		if isDateOnly(raw) {
			signals.SetWhaleDay(ts, active)
		} else {
			signals.SetWhale(ts, active)
		}
	}
}

// open reads the header and checks the required columns exist
func (r *CSVReader) open(rd io.Reader, required ...string) (*csv.Reader, map[string]int, error) {
	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := r.mapColumns(header)
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("CSV missing required '%s' column", name)
		}
	}
	return cr, columns, nil
}

// mapColumns creates a mapping from column names to indices
func (r *CSVReader) mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)

	for i, column := range header {
		normalized := r.normalizeColumnName(column)
		if _, dup := columnMap[normalized]; !dup {
			columnMap[normalized] = i
		}
	}

	return columnMap
}

// normalizeColumnName converts padded and aliased column names to standard
func (r *CSVReader) normalizeColumnName(column string) string {
	column = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")))

	switch column {
	case "ts", "time", "date", "datetime", "timestamp_utc":
		return "timestamp"
	case "o":
		return "open"
	case "h":
		return "high"
	case "l":
		return "low"
	case "c", "price", "adj_close":
		return "close"
	case "v", "vol":
		return "volume"
	case "score", "sentiment_score", "compound":
		return "sentiment"
	case "whale_activity", "whale_alert", "active":
		return "whale"
	default:
		return column
	}
}

func (r *CSVReader) parseBar(record []string, columns map[string]int) (market.Bar, error) {
	ts, err := r.parseTimestamp(field(record, columns, "timestamp"))
	if err != nil {
		return market.Bar{}, err
	}

	closeStr := field(record, columns, "close")
	if closeStr == "" {
		return market.Bar{}, fmt.Errorf("empty close")
	}
	closePrice, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}

	bar := market.Bar{Timestamp: ts, Close: closePrice}
	for _, f := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"open", &bar.Open, closePrice},
		{"high", &bar.High, closePrice},
		{"low", &bar.Low, closePrice},
		{"volume", &bar.Volume, 0},
	} {
		v, err := parseFloat(field(record, columns, f.name), f.def)
		if err != nil {
			return market.Bar{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return bar, nil
}

// parseTimestamp handles multiple timestamp formats; results are UTC
func (r *CSVReader) parseTimestamp(timestampStr string) (time.Time, error) {
	for _, format := range r.dateFormats {
		if t, err := time.Parse(format, timestampStr); err == nil {
			return t.UTC(), nil
		}
	}

	// Try parsing as Unix timestamp
	if unixTime, err := strconv.ParseInt(timestampStr, 10, 64); err == nil {
		if unixTime > 1e12 { // Milliseconds
			return time.UnixMilli(unixTime).UTC(), nil
		}
		return time.Unix(unixTime, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp: %q", timestampStr)
}

func isDateOnly(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// field returns the trimmed value of a column, or "" when absent
func field(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseFloat(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	}
	return strconv.ParseBool(s)
}
