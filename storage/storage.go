// Package storage defines the durable key-value store that holds the token
// bundle and the pending login attempt across process restarts.
package storage

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = apperrors.ErrNotFound

// Backend is a string key-value store. Implementations must be safe for
// concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by backends that can report writes made by other
// processes or other handles. Notifications are coalesced; receivers should
// re-read the keys they care about. The channel is closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Notifier fans change notifications out to Watch subscribers. Backends
// embed it and call Notify after every write.
type Notifier struct {
	subs map[chan struct{}]struct{}
	mu   sync.Mutex
}

// Watch registers a subscriber until ctx ends.
func (n *Notifier) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[chan struct{}]struct{})
	}
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// Notify wakes every subscriber without blocking.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
