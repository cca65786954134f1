package auth

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultScope is requested when the configuration leaves Scope empty.
	DefaultScope = "openid email customer-account-api:full"
	// DefaultAuthHost is the Customer Account authentication host.
	DefaultAuthHost = "shopify.com"
	// DefaultUserAgent is sent on token requests; the token endpoint answers
	// 403 when the User-Agent is missing.
	DefaultUserAgent = "go-customer-auth/1.0"
)

// Config is the static OAuth client configuration for one shop. Treat it as
// immutable once a session has been created from it.
type Config struct {
	ShopID      string
	ClientID    string
	RedirectURI string
	Scope       string
	Locale      string

	// AuthHost overrides the authentication host, tests point it at an
	// httptest server. Accepts a bare host or a full http(s) base URL.
	AuthHost  string
	UserAgent string
	// Origin is sent on token requests when set. Public clients registered
	// with a JavaScript origin get 401 invalid_token without it.
	Origin string
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ShopID) == "":
		return apperrors.ErrMissingShopID
	case strings.TrimSpace(c.ClientID) == "":
		return apperrors.ErrMissingClientID
	case strings.TrimSpace(c.RedirectURI) == "":
		return apperrors.ErrMissingRedirectURI
	}
	if _, err := url.ParseRequestURI(c.RedirectURI); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRedirectURI, "%q", c.RedirectURI)
	}
	if c.Locale != "" {
		if _, err := CanonicalLocale(c.Locale); err != nil {
			return err
		}
	}
	return nil
}

// GetScope returns the configured scope or DefaultScope.
func (c Config) GetScope() string {
	if strings.TrimSpace(c.Scope) == "" {
		return DefaultScope
	}
	return c.Scope
}

// GetUserAgent returns the configured User-Agent or DefaultUserAgent.
func (c Config) GetUserAgent() string {
	if strings.TrimSpace(c.UserAgent) == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

// Issuer is the OpenID Connect issuer for the shop.
// Example: https://shopify.com/authentication/12345
func (c Config) Issuer() string {
	return fmt.Sprintf("%s/authentication/%s", c.baseURL(), url.PathEscape(c.ShopID))
}

// AuthorizeEndpoint is where the customer is sent to sign in.
func (c Config) AuthorizeEndpoint() string {
	return c.Issuer() + "/oauth/authorize"
}

// TokenEndpoint accepts the authorization_code and refresh_token grants.
func (c Config) TokenEndpoint() string {
	return c.Issuer() + "/oauth/token"
}

// LogoutEndpoint ends the provider session.
func (c Config) LogoutEndpoint() string {
	return c.Issuer() + "/logout"
}

func (c Config) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(c.AuthHost), "/")
	if host == "" {
		host = DefaultAuthHost
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// OAuth2Config maps the shop configuration onto an x/oauth2 public client.
// Credentials travel in the form body since public clients have no secret.
func OAuth2Config(c Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Scopes:      strings.Fields(c.GetScope()),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizeEndpoint(),
			TokenURL:  c.TokenEndpoint(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
