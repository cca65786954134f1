package session

import (
	"context"

	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/token"
)

// Navigator sends the customer to an external URL: the authorize endpoint on
// login, the provider logout endpoint on logout.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// CodeExchanger redeems an authorization code. *token.Client satisfies it.
type CodeExchanger interface {
	ExchangeCodeForTokens(ctx context.Context, code, codeVerifier string) (*oauthmodel.TokenResponse, error)
}

var _ CodeExchanger = (*token.Client)(nil)

// IDTokenVerifier checks an ID token's signature and claims and that its
// nonce is the one sent with the authorize request.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken, nonce string) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Store     *token.Store
	Exchanger CodeExchanger
	Navigator Navigator
	// Verifier is optional. Without it the ID token is stored unchecked.
	Verifier IDTokenVerifier
	// API is optional. A client for the configured shop is created when nil.
	API *customerapi.Client
}
