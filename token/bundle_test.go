package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-customer-auth/internal/utils"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/stretchr/testify/require"
)

func TestIsTokenExpired(t *testing.T) {
	issuedAt := int64(1_760_000_000_000)
	expiresIn := int64(3600)
	hardExpiry := issuedAt + expiresIn*1000

	tests := []struct {
		name    string
		nowMs   int64
		buffer  int64
		expired bool
	}{
		{"well before buffer", hardExpiry - 301_000, 300, false},
		{"one ms before buffer threshold", hardExpiry - 300_001, 300, false},
		{"exactly at buffer threshold", hardExpiry - 300_000, 300, true},
		{"inside buffer", hardExpiry - 1_000, 300, true},
		{"past hard expiry", hardExpiry + 1, 300, true},
		{"zero buffer before expiry", hardExpiry - 1, 0, false},
		{"zero buffer at expiry", hardExpiry, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := token.IsTokenExpired(expiresIn, issuedAt, tt.buffer, time.UnixMilli(tt.nowMs))
			require.Equal(t, tt.expired, got)
		})
	}
}

func TestIsTokenExpired_Monotonic(t *testing.T) {
	issuedAt := int64(1_000_000)
	expiresIn := int64(120)
	threshold := issuedAt + expiresIn*1000 - 60*1000

	for now := threshold - 5000; now <= threshold+5000; now += 250 {
		require.Equal(t, now >= threshold, token.IsTokenExpired(expiresIn, issuedAt, 60, time.UnixMilli(now)), "now=%d", now)
	}
}

func TestNewBundle(t *testing.T) {
	issued := time.UnixMilli(1_760_000_000_000)
	b := token.NewBundle(&oauthmodel.TokenResponse{
		AccessToken:  "at",
		ExpiresIn:    7200,
		RefreshToken: utils.Ptr("rt"),
		Scope:        "openid",
		IDToken:      utils.Ptr(""),
	}, issued)

	require.Equal(t, "at", b.AccessToken)
	require.Equal(t, "Bearer", b.TokenType)
	require.Equal(t, issued.UnixMilli(), b.IssuedAt)
	require.Equal(t, issued.Add(7200*time.Second), b.ExpiresAt())
	require.True(t, b.CanRefresh())
	require.Nil(t, b.IDToken)

	b.RefreshToken = nil
	require.False(t, b.CanRefresh())
	require.False(t, b.IsExpired(issued, token.DefaultExpiryBuffer))
	require.True(t, b.IsExpired(issued.Add(7200*time.Second-token.DefaultExpiryBuffer), token.DefaultExpiryBuffer))
}
