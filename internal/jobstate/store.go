// Package jobstate owns the observable state of the single active dispatch
// run: one writer (the coordinator), arbitrarily many polling readers.
package jobstate

import (
	"sync"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

type Store struct {
	mu    sync.RWMutex
	state domain.JobState
}

func New() *Store {
	return &Store{}
}

// TryStart atomically claims the run slot and resets state for a run of the
// given size. It returns false, leaving the in-flight state untouched, when
// a run is already active.
func (s *Store) TryStart(total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running {
		return false
	}
	s.state = domain.JobState{Running: true, Total: total}
	return true
}

// RecordProgress appends one outcome and advances the progress counter.
func (s *Store) RecordProgress(outcome domain.DeliveryOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Progress++
	s.state.Results = append(s.state.Results, outcome)
}

// MarkFinished clears the running flag. A non-empty errMsg records a fatal
// run-level error.
func (s *Store) MarkFinished(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Running = false
	if errMsg != "" {
		s.state.Error = errMsg
	}
}

// Snapshot returns a read-only copy. The results slice is copied so callers
// can hold it without racing the writer.
func (s *Store) Snapshot() domain.JobState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	snap.Results = make([]domain.DeliveryOutcome, len(s.state.Results))
	copy(snap.Results, s.state.Results)
	return snap
}
