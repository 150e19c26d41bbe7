package task

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusFilter narrows StatusStore.List results. Zero-valued fields
// match everything.
type StatusFilter struct {
	Status Status
	Type   string
	Source Source
	Limit  int
}

// StatusStore is an in-memory map of task ID to the task's last known
// record. Workers and the retry scheduler write snapshots on every
// transition; a periodic housekeeping sweep evicts terminal records
// older than the retention window to bound memory under sustained load.
type StatusStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Task
	logger  *slog.Logger
}

// NewStatusStore creates an empty status store.
func NewStatusStore(logger *slog.Logger) *StatusStore {
	return &StatusStore{
		records: make(map[uuid.UUID]*Task),
		logger:  logger.With("component", "status_store"),
	}
}

// Put records a snapshot of the task's current state.
func (s *StatusStore) Put(t *Task) {
	snapshot := t.Clone()
	s.mu.Lock()
	s.records[t.ID] = snapshot
	s.mu.Unlock()
}

// Delete removes a record. Submission uses it to roll back the pending
// snapshot when the queue rejects the task.
func (s *StatusStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

// Get returns a copy of the task's last known record.
func (s *StatusStore) Get(id uuid.UUID) (*Task, bool) {
	s.mu.RLock()
	t, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns copies of records matching the filter, newest first.
func (s *StatusStore) List(filter StatusFilter) []*Task {
	s.mu.RLock()
	matched := make([]*Task, 0)
	for _, t := range s.records {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Source != "" && t.Source != filter.Source {
			continue
		}
		matched = append(matched, t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched
}

// Counts returns the number of records per status.
func (s *StatusStore) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int)
	for _, t := range s.records {
		counts[t.Status]++
	}
	return counts
}

// Sweep removes terminal records whose CompletedAt is older than the
// retention window and returns how many were evicted.
func (s *StatusStore) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	evicted := 0
	for id, t := range s.records {
		if !t.Status.IsTerminal() {
			continue
		}
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.records, id)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Debug("swept terminal task records",
			"evicted", evicted,
			"retention", retention)
	}
	return evicted
}

// Len returns the total number of records held.
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
