// Package memory provides a process-local store with lazy TTL expiry.
// Entries are reaped on read, never by a background sweep.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

type Store struct {
	now func() time.Time

	mu sync.Mutex
	m  map[string]entry
}

func New() *Store {
	return &Store{
		now: time.Now,
		m:   make(map[string]entry),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.m, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.m[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}

// CompareAndSwap writes value only when the current value equals old; a nil
// old matches an absent key. The decision engine does not use this, but
// callers that need to close its read-modify-write race can.
func (s *Store) CompareAndSwap(_ context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.m[key]
	if ok && !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(s.m, key)
		ok = false
	}

	switch {
	case !ok:
		if old != nil {
			return false, nil
		}
	case !bytes.Equal(e.value, old):
		return false, nil
	}

	next := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		next.expiresAt = now.Add(ttl)
	}
	s.m[key] = next
	return true, nil
}
