// Package memstore provides an in-memory implementation of analysis.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/verdict/internal/analysis"
)

// Store holds analyses in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	results map[string]*analysis.Complete // analysis ID -> result
	byAlert map[string]string             // alert ID -> analysis ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results: make(map[string]*analysis.Complete),
		byAlert: make(map[string]string),
	}
}

// Get retrieves an analysis by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*analysis.Complete, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// GetByAlertID retrieves the latest analysis for an alert. Returns a copy.
func (s *Store) GetByAlertID(_ context.Context, alertID string) (*analysis.Complete, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAlert[alertID]
	if !ok {
		return nil, false, nil
	}
	r := s.results[id]
	cp := *r
	return &cp, true, nil
}

// Put stores a copy of the analysis.
func (s *Store) Put(_ context.Context, r *analysis.Complete) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.results[r.ID] = &cp
	s.byAlert[r.AlertID] = r.ID
	return nil
}
