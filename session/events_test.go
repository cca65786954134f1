package session_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/stretchr/testify/require"
)

func TestOnSessionChange_OrderedAndOnce(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	require.NoError(t, f.sess.Initialize(t.Context()))
	events := collect(t, f.sess)

	f.seedTokens(t, f.clock.Now(), "rt")
	require.NoError(t, f.sess.Logout(t.Context()))

	e := next(t, events)
	require.Equal(t, session.EventTokensStored, e.Type)
	require.Equal(t, "at-initial", e.Tokens.AccessToken)

	e = next(t, events)
	require.Equal(t, session.EventStateChanged, e.Type)
	require.Equal(t, session.StateAuthenticated, e.State)

	e = next(t, events)
	require.Equal(t, session.EventTokensCleared, e.Type)

	e = next(t, events)
	require.Equal(t, session.EventStateChanged, e.Type)
	require.Equal(t, session.StateIdle, e.State)

	// the backend's own change notifications must not repeat events
	require.Never(t, func() bool { return len(events) > 0 }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestOnSessionChange_Unsubscribe(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ch := make(chan session.Event, 8)
	unsubscribe := f.sess.OnSessionChange(func(e session.Event) { ch <- e })
	unsubscribe()
	unsubscribe()

	f.seedTokens(t, f.clock.Now(), "rt")
	require.Never(t, func() bool { return len(ch) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestOnSessionChange_PanickingObserverDoesNotStopDelivery(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	f.sess.OnSessionChange(func(session.Event) { panic("observer bug") })
	events := collect(t, f.sess)

	f.seedTokens(t, f.clock.Now(), "rt")
	require.Equal(t, session.EventTokensStored, next(t, events).Type)
}

func TestSession_FollowsWritesFromAnotherProcess(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	require.NoError(t, f.sess.Initialize(t.Context()))
	events := collect(t, f.sess)

	// a second store over the same backend stands in for another process
	other := token.NewStore(f.backend, f.refresher, token.WithNowTime(f.clock.Now))
	_, err := other.StoreTokens(t.Context(), &oauthmodel.TokenResponse{AccessToken: "at-elsewhere", ExpiresIn: 3600}, f.clock.Now())
	require.NoError(t, err)

	e := next(t, events)
	require.Equal(t, session.EventTokensStored, e.Type)
	require.Equal(t, "at-elsewhere", e.Tokens.AccessToken)
	require.Equal(t, "at-elsewhere", f.api.AccessToken())
	require.True(t, f.sess.IsAuthenticated())

	e = next(t, events)
	require.Equal(t, session.EventStateChanged, e.Type)
	require.Equal(t, session.StateAuthenticated, e.State)

	require.NoError(t, other.ClearStoredTokens(t.Context()))
	require.Equal(t, session.EventTokensCleared, next(t, events).Type)
	require.False(t, f.sess.IsAuthenticated())
}
