// Package session coordinates the customer login lifecycle: login redirect,
// callback validation, code exchange, token refresh, silent checks, logout
// and the authenticated Customer Account API client.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/jrsteele09/go-customer-auth/internal/clock"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSilentCheckTimeout = 10 * time.Second
	DefaultCompletionTimeout  = 3 * time.Second
	replayCacheSize           = 16
)

// DefaultCustomerQuery is the operation FetchCustomer sends unless
// WithCustomerQuery replaces it.
var DefaultCustomerQuery = customerapi.Operation{
	OperationName: "CustomerProfile",
	Query:         `query CustomerProfile { customer { id firstName lastName displayName emailAddress { emailAddress } } }`,
}

// Session is the single owner of authentication state for one shop and
// customer. Create it with New, call Initialize once, and Dispose when done.
type Session struct {
	cfg       auth.Config
	store     *token.Store
	exchanger CodeExchanger
	navigator Navigator
	verifier  IDTokenVerifier
	api       *customerapi.Client

	clock              clock.Clock
	mode               ExchangeMode
	silentTimeout      time.Duration
	completionTimeout  time.Duration
	postLogoutRedirect string
	customerQuery      customerapi.Operation

	events *dispatcher

	mu             sync.Mutex
	tokens         *token.Bundle
	phase          phase
	lastErr        error
	manualCode     string
	failed         *pendingExchange
	customer       json.RawMessage
	completion     *completion
	publishedState State
	initialized    bool
	disposed       bool
	stopWatch      context.CancelFunc

	// callbackMu serialises callback handling so a code is redeemed once.
	callbackMu  sync.Mutex
	replayed    map[string]*CallbackOutcome
	replayOrder []string
}

// pendingExchange is a validated code kept in memory after a transient
// exchange failure.
type pendingExchange struct {
	key          string
	code         string
	codeVerifier string
	nonce        string
	generation   uint64
}

type completion struct {
	once   sync.Once
	result Completion
}

type Option func(*Session)

func WithExchangeMode(mode ExchangeMode) Option {
	return func(s *Session) {
		if mode == ExchangeAuto || mode == ExchangeManual {
			s.mode = mode
		}
	}
}

// WithClock sets the clock used for the silent check and completion
// timeouts.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithSilentCheckTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.silentTimeout = d
		}
	}
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

// WithPostLogoutRedirectURI sets where the provider sends the customer after
// a provider logout.
func WithPostLogoutRedirectURI(uri string) Option {
	return func(s *Session) {
		s.postLogoutRedirect = uri
	}
}

func WithCustomerQuery(op customerapi.Operation) Option {
	return func(s *Session) {
		if op.Query != "" {
			s.customerQuery = op
		}
	}
}

// New creates a Session. The configuration is not validated here; Login
// reports configuration errors.
func New(cfg auth.Config, deps Deps, opts ...Option) (*Session, error) {
	if deps.Store == nil {
		return nil, errors.New("[session.New] token store is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("[session.New] navigator is required")
	}

	s := &Session{
		cfg:               cfg,
		store:             deps.Store,
		exchanger:         deps.Exchanger,
		navigator:         deps.Navigator,
		verifier:          deps.Verifier,
		api:               deps.API,
		clock:             clock.Real{},
		mode:              ExchangeAuto,
		silentTimeout:     DefaultSilentCheckTimeout,
		completionTimeout: DefaultCompletionTimeout,
		customerQuery:     DefaultCustomerQuery,
		completion:        &completion{},
		publishedState:    StateIdle,
		replayed:          make(map[string]*CallbackOutcome),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.mode == ExchangeAuto && s.exchanger == nil {
		return nil, errors.New("[session.New] code exchanger is required in auto exchange mode")
	}
	if s.api == nil {
		s.api = customerapi.New(cfg.ShopID, "", customerapi.WithUserAgent(cfg.GetUserAgent()))
	}

	s.events = newDispatcher()
	s.store.OnChange(s.onTokensChanged)
	return s, nil
}

// Initialize loads the stored bundle and starts following storage changes
// made by other processes.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return apperrors.ErrSessionDisposed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWatch = cancel
	s.mu.Unlock()

	s.reload(ctx)

	changes, err := s.store.Watch(watchCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "[Session.Initialize] watch storage")
	}
	if changes != nil {
		go s.follow(watchCtx, changes)
	}
	return nil
}

func (s *Session) follow(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			s.reload(ctx)
		}
	}
}

// reload picks up the stored bundle, which may have been written by another
// process sharing the backend. The read happens under the lock so a clear
// cannot land between reading and applying a stale bundle.
func (s *Session) reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyTokensLocked(s.store.GetStoredTokens(ctx))
}

// Dispose stops the storage watcher and the event dispatcher. The Session
// cannot be used afterwards.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	stop := s.stopWatch
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.events.close()
}

// OnSessionChange registers fn for every session change. Events are
// delivered in order from a single goroutine; fn must not block for long.
func (s *Session) OnSessionChange(fn func(Event)) (unsubscribe func()) {
	return s.events.subscribe(fn)
}

// onTokensChanged keeps the in-memory view in step with the store. It is
// called by the store after every write and clear, and by reload.
func (s *Session) onTokensChanged(b *token.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyTokensLocked(b)
}

func (s *Session) applyTokensLocked(b *token.Bundle) {
	if sameBundle(s.tokens, b) {
		return
	}
	s.tokens = b.Clone()
	if b == nil {
		s.customer = nil
		s.api.UpdateAccessToken("")
		s.events.publish(Event{Type: EventTokensCleared})
	} else {
		s.api.UpdateAccessToken(b.AccessToken)
		s.events.publish(Event{Type: EventTokensStored, Tokens: b.Clone()})
	}
	s.publishStateLocked()
}

func sameBundle(a, b *token.Bundle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken && a.IssuedAt == b.IssuedAt
}

// stateLocked derives the state. In-flight operations win over a recorded
// error, which wins over held credentials.
func (s *Session) stateLocked() State {
	switch {
	case s.phase == phaseExchanging:
		return StateExchangingTokens
	case s.phase == phaseAuthenticating:
		return StateAuthenticating
	case s.lastErr != nil:
		return StateError
	case s.tokens != nil || s.manualCode != "":
		return StateAuthenticated
	}
	return StateIdle
}

func (s *Session) publishStateLocked() {
	st := s.stateLocked()
	if st == s.publishedState {
		return
	}
	s.publishedState = st
	s.events.publish(Event{Type: EventStateChanged, State: st, Err: s.lastErr})
}

// update applies fn under the lock and publishes a state change if any.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.publishStateLocked()
}

func (s *Session) fail(err error) {
	s.update(func() {
		s.phase = phaseNone
		s.lastErr = err
	})
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// State returns the current derived state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// IsAuthenticated reports whether a token bundle is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens != nil
}

// Tokens returns a copy of the current bundle, or nil.
func (s *Session) Tokens() *token.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Clone()
}

// LastError returns the most recent login, exchange or refresh failure.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// AuthorizationCode returns the code held in manual exchange mode.
func (s *Session) AuthorizationCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualCode
}

// CustomerData returns the customer payload from the last FetchCustomer.
func (s *Session) CustomerData() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(json.RawMessage(nil), s.customer...)
}

// Diagnostics describes the session without exposing secrets.
func (s *Session) Diagnostics(ctx context.Context) Diagnostics {
	attempt, _ := s.store.PendingAttempt(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	d := Diagnostics{
		State:          s.stateLocked(),
		ExchangeMode:   s.mode,
		HasTokens:      s.tokens != nil,
		PendingAttempt: attempt != nil,
		RetryableCode:  s.failed != nil,
		Generation:     s.store.Generation(),
	}
	if s.lastErr != nil {
		d.LastError = s.lastErr.Error()
	}
	if b := s.tokens; b != nil {
		exp := b.ExpiresAt()
		d.ExpiresAt = &exp
		d.Expired = s.store.IsExpired(b)
		d.CanRefresh = b.CanRefresh()
		d.Scope = b.Scope
		if b.IDToken != nil {
			if claims, err := token.ParseIDTokenClaims(*b.IDToken); err == nil {
				d.IDToken = claims
			} else {
				log.Debug().Err(err).Msg("stored id token unreadable")
			}
		}
	}
	return d
}
