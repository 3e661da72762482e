package screen

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is an in-memory thread-safe registry of mounted screens.
type Store struct {
	mu      sync.RWMutex
	screens map[string]*Screen
}

// NewStore creates an empty screen store.
func NewStore() *Store {
	return &Store{screens: make(map[string]*Screen)}
}

// Add registers a screen, assigning it a UUID.
func (s *Store) Add(sc *Screen) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.id = uuid.New().String()
	s.screens[sc.id] = sc
	return sc.id
}

// Get returns a screen by ID, or nil if not found.
func (s *Store) Get(id string) *Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screens[id]
}

// List returns all screens.
func (s *Store) List() []*Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Screen, 0, len(s.screens))
	for _, sc := range s.screens {
		result = append(result, sc)
	}
	return result
}

// Delete closes and removes a screen by ID.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sc, ok := s.screens[id]
	delete(s.screens, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sc.Close()
	return true
}

// Sweep closes screens unused for longer than maxIdle and returns how many
// were removed.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []string
	s.mu.RLock()
	for id, sc := range s.screens {
		if sc.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()
	n := 0
	for _, id := range stale {
		if s.Delete(id) {
			n++
		}
	}
	return n
}

// CloseAll closes every screen.
func (s *Store) CloseAll() {
	for _, sc := range s.List() {
		s.Delete(sc.ID())
	}
}
