package prefetch

import (
	"sync"

	"nextreel/models"
)

// CriteriaStore holds the active filter criteria. Replacement is atomic:
// readers always see either the old or the new criteria in full, never a
// torn write.
type CriteriaStore struct {
	mu       sync.RWMutex
	criteria models.FilterCriteria
}

// NewCriteriaStore creates a store with no restrictions set.
func NewCriteriaStore() *CriteriaStore {
	return &CriteriaStore{}
}

// Get returns a snapshot of the active criteria.
func (s *CriteriaStore) Get() models.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Replace installs new criteria, normalizing malformed bounds by clamping.
// Returns the normalized criteria as stored.
func (s *CriteriaStore) Replace(c models.FilterCriteria) models.FilterCriteria {
	c = c.Normalize()
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()
	return c
}
