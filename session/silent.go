package session

import (
	"context"
	"errors"

	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/rs/zerolog/log"
)

// ErrSilentCheckTimeout is carried by a LoginRequired result when the check
// did not finish in time.
var ErrSilentCheckTimeout = errors.New("silent session check timed out")

// SilentCheck answers whether the customer is still signed in without any
// interaction, renewing the access token through the refresh token when
// needed. It is bounded by the silent check timeout, and a timeout counts as
// LoginRequired.
func (s *Session) SilentCheck(ctx context.Context) SilentResult {
	checkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan SilentResult, 1)
	go func() {
		done <- s.silentRefresh(checkCtx)
	}()

	select {
	case r := <-done:
		log.Debug().Str("outcome", r.Outcome.String()).Msg("silent check finished")
		return r
	case <-s.clock.After(s.silentTimeout):
		log.Warn().Dur("timeout", s.silentTimeout).Msg("silent check timed out")
		return SilentResult{Outcome: LoginRequired, Err: ErrSilentCheckTimeout}
	case <-ctx.Done():
		return SilentResult{Outcome: CheckError, Err: ctx.Err()}
	}
}

func (s *Session) silentRefresh(ctx context.Context) SilentResult {
	current := s.store.GetStoredTokens(ctx)
	if current == nil {
		return SilentResult{Outcome: LoginRequired}
	}
	if !current.CanRefresh() {
		// not renewable: usable until hard expiry, then a login is needed
		if s.store.Now().Before(current.ExpiresAt()) {
			return SilentResult{Outcome: StillAuthenticated, Tokens: current}
		}
		return SilentResult{Outcome: LoginRequired}
	}

	b, err := s.store.AutoRefreshTokens(ctx, false)
	if err != nil {
		if ctx.Err() == nil {
			s.refreshFailed(err)
		}
		if errors.Is(err, token.ErrRefreshInvalid) {
			return SilentResult{Outcome: LoginRequired, Err: err}
		}
		return SilentResult{Outcome: CheckError, Err: err}
	}
	if b == nil {
		return SilentResult{Outcome: LoginRequired}
	}
	return SilentResult{Outcome: StillAuthenticated, Tokens: b}
}

// refreshFailed records a refresh failure. The store has already cleared the
// tokens; the session only keeps the reason.
func (s *Session) refreshFailed(err error) {
	log.Warn().Err(err).Bool("relogin", errors.Is(err, token.ErrRefreshInvalid)).Msg("token refresh failed, session ended")
	s.update(func() {
		s.lastErr = err
	})
}

// CompleteLogin is the post-login completion signal. The first call after a
// login fetches the customer and waits up to the completion timeout; if the
// fetch has not finished by then it completes optimistically and the fetch
// carries on in the background. Every later call returns the first result,
// and EventLoginCompleted is published once.
func (s *Session) CompleteLogin(ctx context.Context) Completion {
	s.mu.Lock()
	c := s.completion
	authenticated := s.tokens != nil
	s.mu.Unlock()

	if !authenticated {
		return Completion{Err: apperrors.ErrNotAuthenticated}
	}

	c.once.Do(func() {
		c.result = s.awaitCustomer(ctx)
		s.events.publish(Event{Type: EventLoginCompleted, State: s.State(), Err: c.result.Err})
		log.Info().Bool("optimistic", c.result.Optimistic).Msg("login completed")
	})
	return c.result
}

func (s *Session) awaitCustomer(ctx context.Context) Completion {
	type fetched struct {
		data []byte
		err  error
	}
	done := make(chan fetched, 1)
	go func() {
		data, err := s.FetchCustomer(context.WithoutCancel(ctx))
		done <- fetched{data: data, err: err}
	}()

	select {
	case f := <-done:
		return Completion{Customer: f.data, Err: f.err}
	case <-s.clock.After(s.completionTimeout):
		log.Warn().Dur("timeout", s.completionTimeout).Msg("customer fetch slow, completing login optimistically")
		return Completion{Optimistic: true}
	case <-ctx.Done():
		return Completion{Err: ctx.Err()}
	}
}
