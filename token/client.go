package token

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/internal/utils"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Client talks to the shop's token endpoint. It never persists anything.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	base *http.Client
}

// WithHTTPClient sets the HTTP client whose transport and timeout are used.
// Its redirect policy is replaced so a 301 from the token endpoint surfaces.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.base = c
	}
}

// NewClient builds a token client for cfg.
func NewClient(cfg auth.Config, opts ...ClientOption) *Client {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport
	timeout := defaultTimeout
	if o.base != nil {
		if o.base.Transport != nil {
			base = o.base.Transport
		}
		if o.base.Timeout != 0 {
			timeout = o.base.Timeout
		}
	}

	return &Client{
		oauth: auth.OAuth2Config(cfg),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &headerTransport{
				base:      base,
				userAgent: cfg.GetUserAgent(),
				origin:    cfg.Origin,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ExchangeCodeForTokens redeems an authorization code with its PKCE verifier.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code, codeVerifier string) (*oauthmodel.TokenResponse, error) {
	tok, err := c.oauth.Exchange(c.context(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		xerr := classify(oauthmodel.AuthorizationCodeGrant, err)
		log.Err(err).Str("kind", xerr.Kind.String()).Int("status", xerr.StatusCode).Msg("authorization code exchange failed")
		return nil, xerr
	}
	return toResponse(tok), nil
}

// RefreshAccessToken trades a refresh token for a new access token. Refresh
// responses carry no ID token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenResponse, error) {
	tok, err := c.oauth.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		xerr := classify(oauthmodel.RefreshTokenGrant, err)
		log.Err(err).Str("kind", xerr.Kind.String()).Int("status", xerr.StatusCode).Msg("token refresh failed")
		return nil, xerr
	}
	return toResponse(tok), nil
}

func (c *Client) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toResponse(tok *oauth2.Token) *oauthmodel.TokenResponse {
	resp := &oauthmodel.TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn(tok),
		RefreshToken: utils.OptionalString(tok.RefreshToken),
	}
	if scope, ok := tok.Extra(oauthmodel.ParamScope).(string); ok {
		resp.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = utils.OptionalString(idToken)
	}
	return resp
}

// expiresIn reads the raw expires_in field; x/oauth2 only exposes it as an
// absolute Expiry.
func expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if !tok.Expiry.IsZero() {
		return int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	return 0
}

// headerTransport adds the headers the Customer Account token endpoint
// checks on public clients.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	origin    string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", "application/json")
	r.Header.Set("User-Agent", t.userAgent)
	if t.origin != "" {
		r.Header.Set("Origin", t.origin)
	}
	return t.base.RoundTrip(r)
}
