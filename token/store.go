package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Persisted keys. Nothing outside Store reads or writes them.
const (
	KeyTokens       = "customer_tokens"
	KeyState        = "customer_oauth_state"
	KeyNonce        = "customer_oauth_nonce"
	KeyCodeVerifier = "customer_oauth_code_verifier"
)

// Refresher performs the refresh_token grant. *Client satisfies it.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenResponse, error)
}

var _ Refresher = (*Client)(nil)

// Store owns the token bundle and the pending attempt slot in the backend.
//
// Every ClearStoredTokens advances a generation counter. Writes that started
// before a clear are made with StoreTokensIfCurrent and are dropped, so a
// refresh or exchange that finishes after logout cannot resurrect the session.
type Store struct {
	backend   storage.Backend
	refresher Refresher
	nowTime   func() time.Time
	buffer    time.Duration

	flight        singleflight.Group
	flightTimeout time.Duration

	mu         sync.Mutex
	generation uint64

	hookMu sync.RWMutex
	hooks  []func(*Bundle)
}

type StoreOption func(*Store)

// WithNowTime overrides the clock used for expiry and IssuedAt.
func WithNowTime(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = now
	}
}

// WithExpiryBuffer overrides DefaultExpiryBuffer.
func WithExpiryBuffer(d time.Duration) StoreOption {
	return func(s *Store) {
		if d >= 0 {
			s.buffer = d
		}
	}
}

// WithRefreshTimeout bounds a shared refresh. It runs detached from the
// callers' contexts, so this is the only limit on it.
func WithRefreshTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.flightTimeout = d
		}
	}
}

func NewStore(backend storage.Backend, refresher Refresher, opts ...StoreOption) *Store {
	s := &Store{
		backend:       backend,
		refresher:     refresher,
		nowTime:       time.Now,
		buffer:        DefaultExpiryBuffer,
		flightTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpiryBuffer returns the configured refresh buffer.
func (s *Store) ExpiryBuffer() time.Duration {
	return s.buffer
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.nowTime()
}

// OnChange registers fn to be called after the bundle is written or cleared.
// fn receives nil on clear.
func (s *Store) OnChange(fn func(*Bundle)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(b *Bundle) {
	s.hookMu.RLock()
	hooks := append([]func(*Bundle){}, s.hooks...)
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(b.Clone())
	}
}

// Generation identifies the current session epoch.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// StoreTokens normalises resp and overwrites the current bundle.
func (s *Store) StoreTokens(ctx context.Context, resp *oauthmodel.TokenResponse, issuedAt time.Time) (*Bundle, error) {
	s.mu.Lock()
	b, err := s.write(ctx, NewBundle(resp, issuedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notify(b)
	return b.Clone(), nil
}

// StoreTokensIfCurrent writes only if no clear happened since generation was
// read. Otherwise it returns ErrSessionCleared and the store is unchanged.
func (s *Store) StoreTokensIfCurrent(ctx context.Context, resp *oauthmodel.TokenResponse, issuedAt time.Time, generation uint64) (*Bundle, error) {
	return s.storeBundleIfCurrent(ctx, NewBundle(resp, issuedAt), generation)
}

func (s *Store) storeBundleIfCurrent(ctx context.Context, b *Bundle, generation uint64) (*Bundle, error) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		log.Info().Uint64("generation", generation).Msg("discarding token write from a cleared session")
		return nil, apperrors.ErrSessionCleared
	}
	b, err := s.write(ctx, b)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notify(b)
	return b.Clone(), nil
}

func (s *Store) write(ctx context.Context, b *Bundle) (*Bundle, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode token bundle: %w", err)
	}
	if err := s.backend.Set(ctx, KeyTokens, string(data)); err != nil {
		return nil, fmt.Errorf("persist token bundle: %w", err)
	}
	return b, nil
}

// GetStoredTokens returns the current bundle, or nil when there is none or
// the stored value cannot be read.
func (s *Store) GetStoredTokens(ctx context.Context) *Bundle {
	raw, err := s.backend.Get(ctx, KeyTokens)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("token bundle unreadable, treating as signed out")
		}
		return nil
	}

	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil || b.AccessToken == "" {
		log.Warn().Msg("token bundle corrupt, treating as signed out")
		return nil
	}
	return &b
}

// ClearStoredTokens removes the bundle and starts a new generation.
func (s *Store) ClearStoredTokens(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	err := s.backend.Delete(ctx, KeyTokens)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear token bundle: %w", err)
	}
	s.notify(nil)
	return nil
}

func (s *Store) clearIfCurrent(ctx context.Context, generation uint64) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.generation++
	err := s.backend.Delete(ctx, KeyTokens)
	s.mu.Unlock()
	if err != nil {
		log.Err(err).Msg("failed to clear token bundle after refresh failure")
		return
	}
	s.notify(nil)
}

// IsExpired applies the store's buffer to b.
func (s *Store) IsExpired(b *Bundle) bool {
	return b.IsExpired(s.nowTime(), s.buffer)
}

// AutoRefreshTokens returns a usable bundle, refreshing it when it is inside
// the expiry buffer or force is set.
//
// It returns nil with no error when there is no bundle or no refresh token.
// A fresh bundle is returned untouched without any network call. A failed
// refresh clears the stored bundle and returns nil with the error, unless the
// refresh itself timed out.
//
// Concurrent callers share one refresh. It runs on a context detached from
// every caller, so a caller that gives up gets its own ctx.Err() while the
// others still get the refresh result.
func (s *Store) AutoRefreshTokens(ctx context.Context, force bool) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := s.GetStoredTokens(ctx)
	if seen == nil || !seen.CanRefresh() {
		return nil, nil
	}
	if !force && !s.IsExpired(seen) {
		return seen, nil
	}

	results := s.flight.DoChan(KeyTokens, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()
		return s.refresh(flightCtx, seen)
	})

	select {
	case res := <-results:
		if res.Shared {
			log.Debug().Msg("joined in-flight token refresh")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		b, _ := res.Val.(*Bundle)
		return b.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) refresh(ctx context.Context, seen *Bundle) (*Bundle, error) {
	gen := s.Generation()

	current := s.GetStoredTokens(ctx)
	if current == nil || !current.CanRefresh() {
		return nil, nil
	}
	// a refresh that completed between our read and this flight already
	// rotated the refresh token
	if current.AccessToken != seen.AccessToken && !s.IsExpired(current) {
		return current, nil
	}

	issuedAt := s.nowTime()
	resp, err := s.refresher.RefreshAccessToken(ctx, *current.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.clearIfCurrent(ctx, gen)
		return nil, err
	}

	next := NewBundle(resp, issuedAt)
	if next.RefreshToken == nil {
		next.RefreshToken = current.RefreshToken
	}
	if next.IDToken == nil {
		next.IDToken = current.IDToken
	}
	if next.Scope == "" {
		next.Scope = current.Scope
	}
	return s.storeBundleIfCurrent(ctx, next, gen)
}

// SavePendingAttempt overwrites the pending attempt slot.
func (s *Store) SavePendingAttempt(ctx context.Context, a auth.PendingAuthAttempt) error {
	for _, kv := range [][2]string{
		{KeyState, a.State},
		{KeyNonce, a.Nonce},
		{KeyCodeVerifier, a.CodeVerifier},
	} {
		if err := s.backend.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("persist pending attempt: %w", err)
		}
	}
	return nil
}

// PendingAttempt returns the persisted attempt, or nil if the slot is empty.
func (s *Store) PendingAttempt(ctx context.Context) (*auth.PendingAuthAttempt, error) {
	state, err := s.backend.Get(ctx, KeyState)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending attempt: %w", err)
	}

	a := &auth.PendingAuthAttempt{State: state}
	if a.Nonce, err = s.optional(ctx, KeyNonce); err != nil {
		return nil, err
	}
	if a.CodeVerifier, err = s.optional(ctx, KeyCodeVerifier); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) optional(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// ClearPendingAttempt empties the slot. All three keys are attempted even if
// one delete fails.
func (s *Store) ClearPendingAttempt(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyState, KeyNonce, KeyCodeVerifier} {
		if err := s.backend.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear pending attempt: %w", err)
	}
	return nil
}

// Watch forwards change notifications from the backend. It returns a nil
// channel when the backend cannot watch.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, ok := s.backend.(storage.Watcher)
	if !ok {
		return nil, nil
	}
	return w.Watch(ctx)
}
