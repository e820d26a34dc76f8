package httpapi

import (
	"sort"
	"sync"

	"github.com/arcadeparty/backend/internal/v1/types"
	"k8s.io/utils/set"
)

// Sessions is the in-memory record of which profiles are currently marked
// active. Membership only: an active mark carries no authority and does not
// survive a restart.
type Sessions struct {
	mu     sync.RWMutex
	active set.Set[types.ProfileIdType]
}

// NewSessions builds an empty session set.
func NewSessions() *Sessions {
	return &Sessions{active: set.New[types.ProfileIdType]()}
}

// Activate marks a profile active. Idempotent.
func (s *Sessions) Activate(id types.ProfileIdType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.Insert(id)
}

// Deactivate clears a profile's active mark. Idempotent.
func (s *Sessions) Deactivate(id types.ProfileIdType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.Delete(id)
}

// IsActive reports whether the profile is currently marked active.
func (s *Sessions) IsActive(id types.ProfileIdType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Has(id)
}

// Active returns the active profile ids in stable (sorted) order.
func (s *Sessions) Active() []types.ProfileIdType {
	s.mu.RLock()
	ids := s.active.UnsortedList()
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns how many profiles are marked active.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Len()
}
