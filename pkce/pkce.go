// Package pkce generates the per-attempt security material for the
// authorization code flow: the PKCE verifier and S256 challenge, the CSRF
// state and the OpenID Connect nonce.
package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	// VerifierLength is the number of random bytes behind a code verifier.
	VerifierLength = 32
	// NonceLength is the nonce length used for every login attempt.
	NonceLength = 16
	// stateSuffixLength is the random part appended to the state timestamp.
	stateSuffixLength = 13

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrEntropyUnavailable is returned when the system CSPRNG cannot be read.
var ErrEntropyUnavailable = errors.New("secure random source unavailable")

// randReader is swapped in tests to simulate a failing CSPRNG.
var randReader io.Reader = rand.Reader

// nowTime is swapped in tests to pin the state timestamp.
var nowTime = time.Now

// Material is the PKCE pair for one login attempt.
type Material struct {
	CodeVerifier  string
	CodeChallenge string
}

// SecurityParams binds a login attempt to its callback and ID token.
type SecurityParams struct {
	State string
	Nonce string
}

// GenerateCodeVerifier draws VerifierLength random bytes and encodes them as
// unpadded base64url.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, VerifierLength)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeChallenge returns base64url(SHA-256(verifier)) without padding.
func GenerateCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns the current time in milliseconds followed by a random
// alphanumeric suffix.
func GenerateState() (string, error) {
	suffix, err := randomAlphanumeric(stateSuffixLength)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(nowTime().UnixMilli(), 10) + suffix, nil
}

// GenerateNonce returns length characters drawn uniformly from [A-Za-z0-9].
func GenerateNonce(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("nonce length must be positive, got %d", length)
	}
	return randomAlphanumeric(length)
}

// NewMaterial generates a verifier and its challenge.
func NewMaterial() (Material, error) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return Material{}, err
	}
	return Material{
		CodeVerifier:  verifier,
		CodeChallenge: GenerateCodeChallenge(verifier),
	}, nil
}

// NewSecurityParams generates a state and a NonceLength nonce.
func NewSecurityParams() (SecurityParams, error) {
	state, err := GenerateState()
	if err != nil {
		return SecurityParams{}, err
	}
	nonce, err := GenerateNonce(NonceLength)
	if err != nil {
		return SecurityParams{}, err
	}
	return SecurityParams{State: state, Nonce: nonce}, nil
}

func randomAlphanumeric(length int) (string, error) {
	limit := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(randReader, limit)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}
