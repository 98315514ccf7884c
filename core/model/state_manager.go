package model

import (
	"sync"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// StateManager tracks whether an estimator has been fitted and the input
// width it was fitted on. Estimators hold it as an exported pointer field so
// the fitted state travels with gob persistence.
type StateManager struct {
	Fitted    bool // Public for gob encoding
	NFeatures int
	NSamples  int

	mu sync.RWMutex
}

// NewStateManager creates an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted on nSamples × nFeatures input.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset returns the state to unfitted.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// Features returns the number of features seen during fitting.
func (s *StateManager) Features() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures
}

// RequireFitted returns a NotFittedError for modelName.method when the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures verifies X has the width the model was fitted on.
func (s *StateManager) CheckFeatures(op string, got int) error {
	want := s.Features()
	if got != want {
		return errors.NewDimensionError(op, want, got, 1)
	}
	return nil
}
