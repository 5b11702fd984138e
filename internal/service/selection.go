package service

import (
	"sync"
)

// SelectionState records which tests have been committed to an order. It
// only grows: there is no deselect. Selection is independent of any view
// filtering.
type SelectionState struct {
	mu    sync.RWMutex
	ids   map[string]struct{}
	order []string
}

// NewSelectionState creates an empty selection.
func NewSelectionState() *SelectionState {
	return &SelectionState{ids: make(map[string]struct{})}
}

// Select adds id to the selection. It reports whether id was newly added;
// selecting an already selected test is a no-op.
func (s *SelectionState) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// IsSelected reports whether id has been selected.
func (s *SelectionState) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Selected returns the selected ids in selection order.
func (s *SelectionState) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of selected tests.
func (s *SelectionState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
