package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStatus keeps job status in process. Used when no Redis URL is
// configured.
type MemoryStatus struct {
	mu   sync.RWMutex
	jobs map[string][]byte
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{jobs: make(map[string][]byte)}
}

// Set stores a copy of st. Metadata is round-tripped through JSON so
// readers see the same shapes the Redis store returns.
func (s *MemoryStatus) Set(_ context.Context, jobID string, st Status) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[jobID] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
	s.mu.RLock()
	b, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return Status{}, false, nil
	}
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return Status{}, false, err
	}
	return st, true, nil
}

func (s *MemoryStatus) Close() error { return nil }
