// Package approval records human-in-the-loop authorizations for gated steps.
// Approvals arrive out of band (the HTTP surface) and are keyed by
// "{trace_id}:{step_name}"; a gated step passes once at least one approver is
// recorded for its key.
package approval

import "sync"

// Store is a concurrency-safe approval registry shared across events.
type Store struct {
	mu    sync.RWMutex
	byKey map[string]map[string]struct{}
}

// NewStore returns an empty approval store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]map[string]struct{})}
}

// Key builds the approval key for a step of a trace.
func Key(traceID, stepName string) string {
	return traceID + ":" + stepName
}

// Approve records that user approved the step. An empty user is recorded as
// "unknown" so the approval still counts.
func (s *Store) Approve(traceID, stepName, user string) {
	if user == "" {
		user = "unknown"
	}
	key := Key(traceID, stepName)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.byKey[key]
	if !ok {
		set = make(map[string]struct{})
		s.byKey[key] = set
	}
	set[user] = struct{}{}
}

// IsApproved reports whether at least one approver is recorded for the step.
func (s *Store) IsApproved(traceID, stepName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey[Key(traceID, stepName)]) > 0
}

// Approvers returns the recorded approver identities for the step.
func (s *Store) Approvers(traceID, stepName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byKey[Key(traceID, stepName)]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	return out
}
