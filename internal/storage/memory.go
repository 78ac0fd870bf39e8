package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"neurax/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	steps       map[string][]model.StepRecord
	edges       map[string][]model.EdgeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.steps = make(map[string][]model.StepRecord)
	s.edges = make(map[string][]model.EdgeRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	run.NodeIDs = slices.Clone(run.NodeIDs)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	run.NodeIDs = slices.Clone(run.NodeIDs)
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.NodeIDs = slices.Clone(run.NodeIDs)
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) AppendSteps(_ context.Context, runID string, steps []model.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	s.steps[runID] = append(s.steps[runID], steps...)
	return nil
}

func (s *MemoryStore) GetSteps(_ context.Context, runID string) ([]model.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.steps[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(steps), true, nil
}

func (s *MemoryStore) SaveEdges(_ context.Context, runID string, edges []model.EdgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	s.edges[runID] = slices.Clone(edges)
	return nil
}

func (s *MemoryStore) GetEdges(_ context.Context, runID string) ([]model.EdgeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges, ok := s.edges[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(edges), true, nil
}

var errStoreNotInitialized = errors.New("store is not initialized")

// sortRuns orders runs oldest first, breaking ties by id.
func sortRuns(runs []model.RunRecord) {
	slices.SortFunc(runs, func(a, b model.RunRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
