// Package installprompt holds the deferred "install this app" prompt and
// the platform checks that decide whether to offer it.
package installprompt

import "sync"

// Slot holds at most one value. A value is set once, taken at most once,
// and can be discarded with Clear.
type Slot[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
}

// Set stores v if the slot is empty. It returns false and keeps the
// current value if the slot already holds one.
func (s *Slot[T]) Set(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full {
		return false
	}
	s.value = v
	s.full = true
	return true
}

// Take returns the held value and empties the slot.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.value, s.full
	s.clear()
	return v, ok
}

// Peek returns the held value without consuming it.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.full
}

// Clear discards the held value, if any.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Slot[T]) clear() {
	var zero T
	s.value = zero
	s.full = false
}
