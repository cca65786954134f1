package session_test

import (
	"net/http"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/stretchr/testify/require"
)

func TestSilentCheck_Outcomes(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.LoginRequired, r.Outcome)
		require.NoError(t, r.Err)
	})

	t.Run("fresh tokens need no network", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.seedTokens(t, f.clock.Now(), "rt")

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.StillAuthenticated, r.Outcome)
		require.Equal(t, "at-initial", r.Tokens.AccessToken)
		require.Zero(t, f.refresher.calls.Load())
	})

	t.Run("expired tokens are renewed", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.seedTokens(t, f.clock.Now().Add(-time.Hour), "rt")

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.StillAuthenticated, r.Outcome)
		require.Equal(t, "at-after-rt", r.Tokens.AccessToken)
		require.EqualValues(t, 1, f.refresher.calls.Load())
	})

	t.Run("unrenewable but valid", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.seedTokens(t, f.clock.Now().Add(-58*time.Minute), "")

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.StillAuthenticated, r.Outcome)
		require.Zero(t, f.refresher.calls.Load())
	})

	t.Run("unrenewable and past expiry", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.seedTokens(t, f.clock.Now().Add(-2*time.Hour), "")

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.LoginRequired, r.Outcome)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.refresher.fn = func(string) (*oauthmodel.TokenResponse, error) {
			return nil, &token.ExchangeError{Kind: token.KindRefreshInvalid, Grant: oauthmodel.RefreshTokenGrant, StatusCode: http.StatusBadRequest, Code: "invalid_grant"}
		}
		f.seedTokens(t, f.clock.Now().Add(-time.Hour), "rt")
		require.NoError(t, f.sess.Initialize(t.Context()))

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.LoginRequired, r.Outcome)
		require.ErrorIs(t, r.Err, token.ErrRefreshInvalid)
		require.Nil(t, f.store.GetStoredTokens(t.Context()))
		require.Equal(t, session.StateError, f.sess.State())
	})

	t.Run("endpoint unavailable", func(t *testing.T) {
		f := newFixture(t, fixtureOption{})
		f.refresher.fn = func(string) (*oauthmodel.TokenResponse, error) {
			return nil, &token.ExchangeError{Kind: token.KindTransient, Grant: oauthmodel.RefreshTokenGrant, StatusCode: http.StatusServiceUnavailable}
		}
		f.seedTokens(t, f.clock.Now().Add(-time.Hour), "rt")

		r := f.sess.SilentCheck(t.Context())
		require.Equal(t, session.CheckError, r.Outcome)
		require.ErrorIs(t, r.Err, token.ErrTransient)
	})
}

func TestSilentCheck_TimeoutMeansLoginRequired(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	f.refresher.gate = make(chan struct{})
	f.seedTokens(t, f.clock.Now().Add(-time.Hour), "rt")

	done := make(chan session.SilentResult, 1)
	go func() {
		done <- f.sess.SilentCheck(t.Context())
	}()

	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 && f.refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	f.clock.Advance(session.DefaultSilentCheckTimeout)

	r := <-done
	require.Equal(t, session.LoginRequired, r.Outcome)
	require.ErrorIs(t, r.Err, session.ErrSilentCheckTimeout)
	// giving up on the check does not fail the refresh, so the tokens stay
	require.Eventually(t, func() bool { return f.store.GetStoredTokens(t.Context()) != nil }, time.Second, 5*time.Millisecond)
}

func TestCompleteLogin_NotAuthenticated(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	c := f.sess.CompleteLogin(t.Context())
	require.ErrorIs(t, c.Err, apperrors.ErrNotAuthenticated)
}

func TestCompleteLogin_ExactlyOnce(t *testing.T) {
	srv, calls := graphqlServer(t, nil)
	f := newFixture(t, fixtureOption{apiURL: srv.URL})
	events := collect(t, f.sess)

	_, err := f.sess.HandleCallback(t.Context(), f.login(t, "code-complete"))
	require.NoError(t, err)

	first := f.sess.CompleteLogin(t.Context())
	require.NoError(t, first.Err)
	require.False(t, first.Optimistic)
	require.JSONEq(t, `{"id":"gid://shopify/Customer/1","displayName":"Ada"}`, string(first.Customer))

	second := f.sess.CompleteLogin(t.Context())
	require.Equal(t, first, second)
	require.EqualValues(t, 1, calls.Load())

	completed := 0
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Type == session.EventLoginCompleted {
					completed++
				}
			default:
				return completed == 1
			}
		}
	}, time.Second, 10*time.Millisecond)
	require.Never(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Type == session.EventLoginCompleted {
					return true
				}
			default:
				return false
			}
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestCompleteLogin_FallsBackOptimistically(t *testing.T) {
	release := make(chan struct{})
	srv, _ := graphqlServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"data":{"customer":{"id":"gid://shopify/Customer/1"}}}`))
	})
	t.Cleanup(func() { close(release) })

	f := newFixture(t, fixtureOption{apiURL: srv.URL})
	f.seedTokens(t, f.clock.Now(), "rt")

	done := make(chan session.Completion, 1)
	go func() {
		done <- f.sess.CompleteLogin(t.Context())
	}()
	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, time.Second, 5*time.Millisecond)
	f.clock.Advance(session.DefaultCompletionTimeout)

	c := <-done
	require.True(t, c.Optimistic)
	require.NoError(t, c.Err)
	require.Equal(t, c, f.sess.CompleteLogin(t.Context()))
}
