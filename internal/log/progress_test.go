package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
)

func TestProgressIndicator_JobDone(t *testing.T) {
	var logs, bar bytes.Buffer
	pi := NewProgressIndicator("batch", zerolog.New(&logs), ProgressConfig{Bar: &bar})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pi.startTime = start
	pi.now = func() time.Time { return start.Add(2 * time.Second) }

	pi.JobDone(1, 2, &backtest.Result{Strategy: "momentum", Dataset: "btc", Status: backtest.StatusCompleted, FinalEquity: 10002})
	pi.JobDone(2, 2, &backtest.Result{Strategy: "momentum", Dataset: "eth", Status: backtest.StatusAborted, Err: errors.New("bad bar"), Error: "bad bar"})

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "btc", first["dataset"])
	assert.Equal(t, 10002.0, first["final_equity"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "bad bar", second["error"])

	assert.Equal(t, 1, pi.Failed())
	assert.Contains(t, bar.String(), "2/2 (100.0%)")
	assert.True(t, strings.HasSuffix(bar.String(), "\n"))
}

func TestProgressIndicator_NoBar(t *testing.T) {
	var logs bytes.Buffer
	pi := NewProgressIndicator("batch", zerolog.New(&logs), ProgressConfig{})
	pi.JobDone(1, 1, &backtest.Result{Status: backtest.StatusCompleted})
	pi.Finish(1)
	assert.Contains(t, logs.String(), "Backtest batch completed")
}

func TestEstimateETA(t *testing.T) {
	assert.Equal(t, time.Duration(0), estimateETA(0, 4, time.Second))
	assert.Equal(t, time.Duration(0), estimateETA(4, 4, time.Second))
	assert.Equal(t, 3*time.Second, estimateETA(1, 4, time.Second))
}

func TestRenderBar(t *testing.T) {
	out := renderBar("runs", 1, 4, 90*time.Second)
	assert.True(t, strings.HasPrefix(out, "runs ["))
	assert.Contains(t, out, "1/4 (25.0%)")
	assert.Contains(t, out, "ETA: 1m30s")
	assert.Equal(t, 5, strings.Count(out, "█"))
}
