package training

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Repository persists runs and their per-epoch metrics.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	RecordEpoch(ctx context.Context, rec EpochRecord) error
	Epochs(ctx context.Context, runID string) ([]EpochRecord, error)
}

// MemoryRepository is the Repository used for local runs and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	runs   map[string]Run
	epochs map[string][]EpochRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: map[string]Run{}, epochs: map[string][]EpochRecord{}}
}

func (m *MemoryRepository) Create(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return errors.New(errors.ErrCodeConflict, "run already exists").WithDetail(run.ID)
	}
	m.runs[run.ID] = clone(run)
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errors.NotFound("run not found").WithDetail(run.ID)
	}
	m.runs[run.ID] = clone(run)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, errors.NotFound("run not found").WithDetail(id)
	}
	out := clone(&r)
	return &out, nil
}

// List returns the most recently created runs first.
func (m *MemoryRepository) List(_ context.Context, limit int) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		c := clone(&r)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) RecordEpoch(_ context.Context, rec EpochRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.RunID]; !ok {
		return errors.NotFound("run not found").WithDetail(rec.RunID)
	}
	m.epochs[rec.RunID] = append(m.epochs[rec.RunID], rec)
	return nil
}

func (m *MemoryRepository) Epochs(_ context.Context, runID string) ([]EpochRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EpochRecord(nil), m.epochs[runID]...), nil
}

func clone(r *Run) Run {
	c := *r
	c.Params.HiddenDims = append([]int(nil), r.Params.HiddenDims...)
	return c
}

//Personal.AI order the ending
