package cache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Namespace]map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Namespace]map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, ns Namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ns][key]
	if !ok || s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, ns Namespace, key, value string, ttl time.Duration) error {
	if ns.DB() < 0 {
		return ErrUnknownNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[ns] == nil {
		s.entries[ns] = make(map[string]memoryEntry)
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[ns][key] = e
	return nil
}

// Keys matches pattern with glob syntax and returns live keys, sorted.
func (s *MemoryStore) Keys(_ context.Context, ns Namespace, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, e := range s.entries[ns] {
		if s.expired(e) {
			delete(s.entries[ns], k)
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Flush(_ context.Context, ns Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ns)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}
