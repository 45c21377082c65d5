package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
)

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	repo      persistence.RepositoryHealth
	metrics   *MetricsRegistry
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler; repo and metrics may be nil
func NewHealthHandler(repo persistence.RepositoryHealth, metrics *MetricsRegistry, version string) *HealthHandler {
	return &HealthHandler{
		repo:      repo,
		metrics:   metrics,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy", "degraded"
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`

	System SystemInfo             `json:"system"`
	Checks map[string]CheckResult `json:"checks"`
	Runs   map[string]float64     `json:"runs"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status   string   `json:"status"` // "pass", "warn", "fail"
	Message  string   `json:"message,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Duration int64    `json:"duration_ms"`
}

// ServeHTTP implements the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.check(r.Context())

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (h *HealthHandler) check(ctx context.Context) HealthResponse {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAlloc:      mem.Alloc,
			NumGC:         mem.NumGC,
		},
		Checks: make(map[string]CheckResult),
		Runs:   map[string]float64{},
	}

	if h.repo == nil {
		response.Checks["database"] = CheckResult{Status: "warn", Message: "persistence not configured"}
	} else {
		hc := h.repo.Health(ctx)
		check := CheckResult{Status: "pass", Errors: hc.Errors, Duration: hc.ResponseTimeMS}
		if hc.Healthy {
			check.Message = fmt.Sprintf("%d stored runs", hc.StoredRuns)
		} else {
			check.Status = "fail"
			response.Status = "degraded"
		}
		response.Checks["database"] = check
	}

	if h.metrics != nil {
		response.Runs = h.metrics.RunTotals()
	}

	return response
}
