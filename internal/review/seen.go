package review

import "sync"

// SeenSet is the run-scoped set of identity keys. It is safe for concurrent use.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSeenSet copies initial into a new set.
func NewSeenSet(initial map[string]struct{}) *SeenSet {
	keys := make(map[string]struct{}, len(initial))
	for k := range initial {
		keys[k] = struct{}{}
	}
	return &SeenSet{keys: keys}
}

// Add records key and reports whether it was new.
func (s *SeenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key was seen.
func (s *SeenSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of keys.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
