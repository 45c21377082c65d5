package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// MemoryRepo is a RunsRepo kept in process memory, used when no database is configured
type MemoryRepo struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]RunRecord
	trades map[uuid.UUID][]position.Trade
}

// NewMemoryRepo creates an empty repository
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		runs:   make(map[uuid.UUID]RunRecord),
		trades: make(map[uuid.UUID][]position.Trade),
	}
}

func (m *MemoryRepo) Save(_ context.Context, run RunRecord, trades []position.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.trades[run.ID] = append([]position.Trade(nil), trades...)
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id uuid.UUID) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (m *MemoryRepo) List(_ context.Context, filter RunFilter) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		if filter.Strategy != "" && run.Strategy != filter.Strategy {
			continue
		}
		if filter.Dataset != "" && run.Dataset != filter.Dataset {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) Trades(_ context.Context, id uuid.UUID) ([]position.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]position.Trade(nil), m.trades[id]...), nil
}
