// Package keyringstore keeps values in the operating system credential store
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
package keyringstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/zalando/go-keyring"
)

// KeyringStore stores each key as a separate secret under one service name.
type KeyringStore struct {
	storage.Notifier
	service string
}

var (
	_ storage.Backend = (*KeyringStore)(nil)
	_ storage.Watcher = (*KeyringStore)(nil)
)

func New(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, errors.New("keyringstore: service name is required")
	}
	return &KeyringStore{service: service}, nil
}

func (s *KeyringStore) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, nil
}

func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	s.Notify()
	return nil
}

func (s *KeyringStore) Delete(_ context.Context, key string) error {
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	s.Notify()
	return nil
}
