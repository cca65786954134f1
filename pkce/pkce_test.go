package pkce_test

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-customer-auth/pkce"
	"github.com/stretchr/testify/require"
)

var alnum = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool closed")
}

func TestGenerateCodeChallenge_RFC7636Vector(t *testing.T) {
	require.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		pkce.GenerateCodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)
}

func TestGenerateCodeVerifier(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		v, err := pkce.GenerateCodeVerifier()
		require.NoError(t, err)
		require.Len(t, v, 43)
		require.NotContains(t, v, "=")
		require.NotContains(t, v, "+")
		require.NotContains(t, v, "/")
		require.False(t, seen[v], "verifier repeated")
		seen[v] = true

		decoded, err := base64.RawURLEncoding.DecodeString(v)
		require.NoError(t, err)
		require.Len(t, decoded, pkce.VerifierLength)

		challenge := pkce.GenerateCodeChallenge(v)
		require.Equal(t, challenge, pkce.GenerateCodeChallenge(v))
		sum := sha256.Sum256([]byte(v))
		require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)
		require.False(t, strings.ContainsAny(challenge, "+/="))
	}
}

func TestGenerateState(t *testing.T) {
	fixed := time.UnixMilli(1760000000123)
	defer pkce.SetNowTime(func() time.Time { return fixed })()

	a, err := pkce.GenerateState()
	require.NoError(t, err)
	b, err := pkce.GenerateState()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(a, "1760000000123"))
	require.Regexp(t, alnum, a)
	require.NotEqual(t, a, b)
}

func TestGenerateNonce(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		for _, n := range []int{1, 16, 64} {
			nonce, err := pkce.GenerateNonce(n)
			require.NoError(t, err)
			require.Len(t, nonce, n)
			require.Regexp(t, alnum, nonce)
		}
	})

	t.Run("non-positive length", func(t *testing.T) {
		_, err := pkce.GenerateNonce(0)
		require.Error(t, err)
	})
}

func TestEntropyFailureIsLoud(t *testing.T) {
	defer pkce.SetRandReader(failingReader{})()

	_, err := pkce.GenerateCodeVerifier()
	require.ErrorIs(t, err, pkce.ErrEntropyUnavailable)

	_, err = pkce.GenerateState()
	require.ErrorIs(t, err, pkce.ErrEntropyUnavailable)

	_, err = pkce.GenerateNonce(pkce.NonceLength)
	require.ErrorIs(t, err, pkce.ErrEntropyUnavailable)

	_, err = pkce.NewMaterial()
	require.ErrorIs(t, err, pkce.ErrEntropyUnavailable)
}

func TestNewSecurityParams(t *testing.T) {
	p, err := pkce.NewSecurityParams()
	require.NoError(t, err)
	require.Len(t, p.Nonce, pkce.NonceLength)
	require.NotEmpty(t, p.State)

	m, err := pkce.NewMaterial()
	require.NoError(t, err)
	require.Equal(t, pkce.GenerateCodeChallenge(m.CodeVerifier), m.CodeChallenge)
}
