package auth

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/pkce"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// AuthorizationOptions tunes a single authorize request.
type AuthorizationOptions struct {
	// Prompt is sent as prompt=<value>; use oauthmodel.PromptNone for a
	// non-interactive session check.
	Prompt oauthmodel.PromptType
	// Locale overrides Config.Locale for this request.
	Locale string
}

// AuthorizationRequest is the result of BuildAuthorizationURL. The caller
// must persist State, Nonce and CodeVerifier before navigating to URL.
type AuthorizationRequest struct {
	URL          string
	State        string
	Nonce        string
	CodeVerifier string
	// AttemptID and CreatedAt only correlate log lines for this attempt.
	// Neither is persisted or sent to the provider.
	AttemptID string
	CreatedAt time.Time
}

// Attempt returns the pending attempt to persist for the callback.
func (r *AuthorizationRequest) Attempt() PendingAuthAttempt {
	return PendingAuthAttempt{
		State:        r.State,
		Nonce:        r.Nonce,
		CodeVerifier: r.CodeVerifier,
	}
}

// BuildAuthorizationURL generates fresh PKCE and security parameters and
// assembles the authorize URL. Nothing is persisted.
func BuildAuthorizationURL(cfg Config, opts AuthorizationOptions) (*AuthorizationRequest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	material, err := pkce.NewMaterial()
	if err != nil {
		return nil, err
	}
	params, err := pkce.NewSecurityParams()
	if err != nil {
		return nil, err
	}

	authOpts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(material.CodeVerifier),
		oauth2.SetAuthURLParam(oauthmodel.ParamNonce, params.Nonce),
	}
	if opts.Prompt != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(oauthmodel.ParamPrompt, string(opts.Prompt)))
	}

	locale := opts.Locale
	if locale == "" {
		locale = cfg.Locale
	}
	if locale != "" {
		canonical, err := CanonicalLocale(locale)
		if err != nil {
			return nil, err
		}
		authOpts = append(authOpts, oauth2.SetAuthURLParam(oauthmodel.ParamLocale, canonical))
	}

	return &AuthorizationRequest{
		URL:          OAuth2Config(cfg).AuthCodeURL(params.State, authOpts...),
		State:        params.State,
		Nonce:        params.Nonce,
		CodeVerifier: material.CodeVerifier,
		AttemptID:    uuid.NewString(),
		CreatedAt:    time.Now(),
	}, nil
}

// BuildLogoutURL returns the provider logout URL. postLogoutRedirectURI is
// omitted from the query when empty.
func BuildLogoutURL(cfg Config, idToken, postLogoutRedirectURI string) string {
	q := url.Values{}
	q.Set(oauthmodel.ParamIDTokenHint, idToken)
	if postLogoutRedirectURI != "" {
		q.Set(oauthmodel.ParamPostLogoutRedirectURI, postLogoutRedirectURI)
	}
	return cfg.LogoutEndpoint() + "?" + q.Encode()
}

// CanonicalLocale parses a BCP 47 locale such as "fr" or "pt_br" and returns
// its canonical form ("fr", "pt-BR").
func CanonicalLocale(locale string) (string, error) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidLocale, "%q", locale)
	}
	return tag.String(), nil
}
