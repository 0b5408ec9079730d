package psycho

import "sync"

type Store interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]interface{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]interface{}{}}
}

func (s *MemoryStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok
}

func (s *MemoryStore) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}
