package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-customer-auth/storage"
)

// InMemoryStore is a thread-safe in-memory implementation of storage.Backend.
// Contents are lost when the process exits.
type InMemoryStore struct {
	storage.Notifier

	mu     sync.RWMutex
	values map[string]string
}

var (
	_ storage.Backend = (*InMemoryStore)(nil)
	_ storage.Watcher = (*InMemoryStore)(nil)
)

// New creates an empty in-memory store
func New() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key
func (s *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.values[key]
	if !exists {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// Set stores value under key, replacing any previous value
func (s *InMemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.Notify()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if existed {
		s.Notify()
	}
	return nil
}

// Len returns the number of stored keys
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
