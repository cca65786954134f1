package session

import (
	"context"
	"crypto/subtle"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-customer-auth/auth"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/pkg/errors"
)

// OIDCVerifier verifies ID tokens issued by the shop's authentication
// server: signature, issuer, audience (the client id), expiry and nonce.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ IDTokenVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier discovers the shop's signing keys from
// <issuer>/.well-known/openid-configuration.
func NewOIDCVerifier(ctx context.Context, cfg auth.Config) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer())
	if err != nil {
		return nil, errors.Wrap(err, "[NewOIDCVerifier] discovery")
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// NewStaticOIDCVerifier verifies against a fixed key set.
func NewStaticOIDCVerifier(cfg auth.Config, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(cfg.Issuer(), keys, &oidc.Config{ClientID: cfg.ClientID}),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken, nonce string) error {
	tok, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return errors.Wrap(err, "[OIDCVerifier.Verify] id token")
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(tok.Nonce), []byte(nonce)) != 1 {
		return apperrors.ErrNonceMismatch
	}
	return nil
}
