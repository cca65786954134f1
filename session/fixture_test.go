package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/jrsteele09/go-customer-auth/internal/clock"
	"github.com/jrsteele09/go-customer-auth/internal/utils"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/storage/memstore"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_760_000_000_000)

func testConfig() auth.Config {
	return auth.Config{
		ShopID:      "12345",
		ClientID:    "shp_client",
		RedirectURI: "https://shop.example.com/account/callback",
	}
}

type fakeExchanger struct {
	calls        atomic.Int32
	gate         chan struct{}
	lastVerifier atomic.Value
	fn           func(code string) (*oauthmodel.TokenResponse, error)
}

func (f *fakeExchanger) ExchangeCodeForTokens(ctx context.Context, code, codeVerifier string) (*oauthmodel.TokenResponse, error) {
	f.calls.Add(1)
	f.lastVerifier.Store(codeVerifier)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fn(code)
}

func issuing(idToken *string) func(string) (*oauthmodel.TokenResponse, error) {
	return func(code string) (*oauthmodel.TokenResponse, error) {
		return &oauthmodel.TokenResponse{
			AccessToken:  "at-" + code,
			TokenType:    "Bearer",
			ExpiresIn:    3600,
			RefreshToken: utils.Ptr("rt-" + code),
			Scope:        "openid email customer-account-api:full",
			IDToken:      idToken,
		}, nil
	}
}

type fakeRefresher struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(refreshToken string) (*oauthmodel.TokenResponse, error)
}

func (f *fakeRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fn(refreshToken)
}

func rotating(rt string) (*oauthmodel.TokenResponse, error) {
	return &oauthmodel.TokenResponse{
		AccessToken:  "at-after-" + rt,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: utils.Ptr(rt + "-rotated"),
	}, nil
}

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNavigator) Navigate(_ context.Context, u string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, u)
	return nil
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

func (n *recordingNavigator) last(t *testing.T) *url.URL {
	t.Helper()
	urls := n.visited()
	require.NotEmpty(t, urls)
	u, err := url.Parse(urls[len(urls)-1])
	require.NoError(t, err)
	return u
}

type fixture struct {
	cfg       auth.Config
	sess      *session.Session
	store     *token.Store
	backend   *memstore.InMemoryStore
	clock     *clock.Fake
	exchanger *fakeExchanger
	refresher *fakeRefresher
	nav       *recordingNavigator
	api       *customerapi.Client
}

type fixtureOption struct {
	cfg      *auth.Config
	verifier session.IDTokenVerifier
	apiURL   string
	opts     []session.Option
}

func newFixture(t *testing.T, fo fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		cfg:       testConfig(),
		backend:   memstore.New(),
		clock:     clock.NewFake(epoch),
		exchanger: &fakeExchanger{fn: issuing(nil)},
		refresher: &fakeRefresher{fn: rotating},
		nav:       &recordingNavigator{},
	}
	if fo.cfg != nil {
		f.cfg = *fo.cfg
	}
	f.store = token.NewStore(f.backend, f.refresher, token.WithNowTime(f.clock.Now))

	apiOpts := []customerapi.Option{}
	if fo.apiURL != "" {
		apiOpts = append(apiOpts, customerapi.WithBaseURL(fo.apiURL))
	}
	f.api = customerapi.New(f.cfg.ShopID, "", apiOpts...)

	opts := append([]session.Option{session.WithClock(f.clock)}, fo.opts...)
	sess, err := session.New(f.cfg, session.Deps{
		Store:     f.store,
		Exchanger: f.exchanger,
		Navigator: f.nav,
		Verifier:  fo.verifier,
		API:       f.api,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(sess.Dispose)
	f.sess = sess
	return f
}

// login runs Login and returns a callback URL carrying code and the state
// that was sent to the authorize endpoint.
func (f *fixture) login(t *testing.T, code string) string {
	t.Helper()
	require.NoError(t, f.sess.Login(t.Context(), auth.AuthorizationOptions{}))
	state := f.nav.last(t).Query().Get(oauthmodel.ParamState)
	require.NotEmpty(t, state)
	return f.cfg.RedirectURI + "?" + url.Values{"code": {code}, "state": {state}}.Encode()
}

func (f *fixture) seedTokens(t *testing.T, issuedAt time.Time, refresh string) *token.Bundle {
	t.Helper()
	b, err := f.store.StoreTokens(t.Context(), &oauthmodel.TokenResponse{
		AccessToken:  "at-initial",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: utils.OptionalString(refresh),
		Scope:        "openid email",
		IDToken:      utils.Ptr("id-initial"),
	}, issuedAt)
	require.NoError(t, err)
	return b
}

// graphqlServer answers the customer query with a fixed customer and counts
// requests.
func graphqlServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if h != nil {
			h(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"customer":{"id":"gid://shopify/Customer/1","displayName":"Ada"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// collect subscribes to session events and returns a buffered channel.
func collect(t *testing.T, s *session.Session) <-chan session.Event {
	t.Helper()
	ch := make(chan session.Event, 64)
	unsubscribe := s.OnSessionChange(func(e session.Event) {
		ch <- e
	})
	t.Cleanup(unsubscribe)
	return ch
}

func next(t *testing.T, ch <-chan session.Event) session.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
	}
	return session.Event{}
}
