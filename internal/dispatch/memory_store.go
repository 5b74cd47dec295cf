package dispatch

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process setups
// where durability is not required.
type MemoryStore struct {
	mu      sync.Mutex
	pending []Job
	active  map[string]Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]Job)}
}

func (s *MemoryStore) Enqueue(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, job)
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Job{}, false, nil
	}
	job := s.pending[0]
	s.pending = s.pending[1:]
	s.active[job.ID] = job
	return job, true, nil
}

func (s *MemoryStore) Ack(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
	return nil
}

func (s *MemoryStore) Requeue(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, job.ID)
	s.pending = append(s.pending, job)
	return nil
}

func (s *MemoryStore) PendingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), nil
}

func (s *MemoryStore) RecoverActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.active)
	for id, job := range s.active {
		delete(s.active, id)
		s.pending = append(s.pending, job)
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
