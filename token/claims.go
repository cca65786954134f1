package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims are the ID token fields surfaced in diagnostics. They are
// read without signature verification and must not drive access decisions.
type IDTokenClaims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	Issuer    string    `json:"iss"`
	Audience  []string  `json:"aud,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}

// ParseIDTokenClaims decodes an ID token payload without verifying it.
func ParseIDTokenClaims(raw string) (*IDTokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty id token")
	}

	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	out := &IDTokenClaims{}
	out.Subject, _ = claims.GetSubject()
	out.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	out.Email, _ = claims["email"].(string)
	out.Nonce, _ = claims["nonce"].(string)
	return out, nil
}
