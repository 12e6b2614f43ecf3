package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"learning/internal/record"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	models      map[string]record.ModelSnapshot
	runs        map[string]record.TrainingRun
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.models = make(map[string]record.ModelSnapshot)
	s.runs = make(map[string]record.TrainingRun)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveModel(_ context.Context, snapshot record.ModelSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.models[snapshot.ID] = snapshot
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, id string) (record.ModelSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.models[id]
	return snapshot, ok, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run record.TrainingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (record.TrainingRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]record.TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]record.TrainingRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) SaveErrorHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetErrorHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")
