package model

import (
	"sync"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
)

// StateManager tracks whether a model has been fitted, and on how many rows
// and features. It is safe for concurrent use.
type StateManager struct {
	mu        sync.RWMutex
	modelName string
	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a StateManager for the named model.
func NewStateManager(modelName string) *StateManager {
	return &StateManager{modelName: modelName}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted on nSamples rows of nFeatures columns.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset returns the model to the unfitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// Dimensions returns the number of features and samples seen during fitting.
func (s *StateManager) Dimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError naming method if the model has not
// been fitted.
func (s *StateManager) RequireFitted(method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(s.modelName, method)
	}
	return nil
}

// RequireFeatures checks that X has the feature count seen during fitting.
func (s *StateManager) RequireFeatures(op string, nFeatures int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if nFeatures != s.nFeatures {
		return errors.NewDimensionError(op, s.nFeatures, nFeatures, 1)
	}
	return nil
}
