package token

import (
	"time"

	"github.com/jrsteele09/go-customer-auth/internal/utils"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
)

// DefaultExpiryBuffer is how long before hard expiry a token is treated as
// expired, so refreshes happen ahead of time.
const DefaultExpiryBuffer = 300 * time.Second

// DefaultRefreshTimeout bounds one shared refresh.
const DefaultRefreshTimeout = 60 * time.Second

// Bundle is the persisted set of credentials for the signed-in customer.
// IssuedAt is epoch milliseconds.
type Bundle struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken,omitempty"`
	TokenType    string  `json:"tokenType"`
	ExpiresIn    int64   `json:"expiresIn"`
	IssuedAt     int64   `json:"issuedAt"`
	Scope        string  `json:"scope"`
	IDToken      *string `json:"idToken,omitempty"`
}

// NewBundle normalises a token endpoint response issued at issuedAt.
func NewBundle(resp *oauthmodel.TokenResponse, issuedAt time.Time) *Bundle {
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &Bundle{
		AccessToken:  resp.AccessToken,
		RefreshToken: utils.OptionalString(utils.Value(resp.RefreshToken)),
		TokenType:    tokenType,
		ExpiresIn:    resp.ExpiresIn,
		IssuedAt:     issuedAt.UnixMilli(),
		Scope:        resp.Scope,
		IDToken:      utils.OptionalString(utils.Value(resp.IDToken)),
	}
}

// ExpiresAt is the hard expiry, IssuedAt + ExpiresIn seconds.
func (b *Bundle) ExpiresAt() time.Time {
	return time.UnixMilli(b.IssuedAt + b.ExpiresIn*1000)
}

// IsExpired reports whether the bundle is inside the refresh buffer at now.
func (b *Bundle) IsExpired(now time.Time, buffer time.Duration) bool {
	return IsTokenExpired(b.ExpiresIn, b.IssuedAt, int64(buffer/time.Second), now)
}

// CanRefresh reports whether the bundle can be renewed without a login.
func (b *Bundle) CanRefresh() bool {
	return b != nil && utils.Value(b.RefreshToken) != ""
}

// Clone returns a deep copy. Nil-safe.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	c := *b
	if b.RefreshToken != nil {
		c.RefreshToken = utils.Ptr(*b.RefreshToken)
	}
	if b.IDToken != nil {
		c.IDToken = utils.Ptr(*b.IDToken)
	}
	return &c
}

// IsTokenExpired is true iff now + bufferSeconds >= issuedAt + expiresIn
// seconds, all in milliseconds. Exactly on the threshold counts as expired.
func IsTokenExpired(expiresIn, issuedAt, bufferSeconds int64, now time.Time) bool {
	return now.UnixMilli()+bufferSeconds*1000 >= issuedAt+expiresIn*1000
}
