package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/stretchr/testify/require"
)

func TestParseIDTokenClaims(t *testing.T) {
	iat := time.Unix(1_760_000_000, 0)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "gid://shopify/Customer/1",
		"email": "ada@example.com",
		"iss":   "https://shopify.com/authentication/12345",
		"aud":   "shp_client",
		"nonce": "abc",
		"iat":   iat.Unix(),
		"exp":   iat.Add(time.Hour).Unix(),
	}).SignedString([]byte("unused"))
	require.NoError(t, err)

	claims, err := token.ParseIDTokenClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "gid://shopify/Customer/1", claims.Subject)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, []string{"shp_client"}, claims.Audience)
	require.Equal(t, "abc", claims.Nonce)
	require.True(t, claims.IssuedAt.Equal(iat))
	require.True(t, claims.ExpiresAt.Equal(iat.Add(time.Hour)))

	_, err = token.ParseIDTokenClaims("")
	require.Error(t, err)
	_, err = token.ParseIDTokenClaims("not-a-jwt")
	require.Error(t, err)
}
