package auth

import (
	"context"
	"crypto/subtle"
	"net/url"

	"github.com/jrsteele09/go-customer-auth/oauthmodel"
)

// PendingAuthAttempt is the single in-flight login attempt. It outlives the
// process that started it, so it lives in durable storage. It holds exactly
// what the store persists.
type PendingAuthAttempt struct {
	State        string
	Nonce        string
	CodeVerifier string
}

// AttemptReader gives read-only access to the pending attempt slot. A nil
// attempt with a nil error means no login is in flight.
type AttemptReader interface {
	PendingAttempt(ctx context.Context) (*PendingAuthAttempt, error)
}

// AttemptReaderFunc adapts a function to AttemptReader.
type AttemptReaderFunc func(ctx context.Context) (*PendingAuthAttempt, error)

func (f AttemptReaderFunc) PendingAttempt(ctx context.Context) (*PendingAuthAttempt, error) {
	return f(ctx)
}

// CallbackResult is the outcome of validating a redirect back from the
// authorize endpoint.
type CallbackResult struct {
	IsValid          bool
	Code             string
	Error            string
	ErrorDescription string
}

// ParseCallbackParameters reads the authorization response parameters from a
// callback URL.
func ParseCallbackParameters(callbackURL string) (oauthmodel.CallbackParameters, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return oauthmodel.CallbackParameters{}, err
	}
	q := u.Query()
	return oauthmodel.CallbackParameters{
		Code:             q.Get(oauthmodel.ParamCode),
		State:            q.Get(oauthmodel.ParamState),
		Error:            q.Get(oauthmodel.ParamError),
		ErrorDescription: q.Get(oauthmodel.ParamErrorDescription),
	}, nil
}

// ValidateCallback checks a callback URL against the pending attempt. It is
// the only CSRF gate and fails closed: anything other than a matching state
// and a present code is invalid. The attempt slot is read, never modified.
func ValidateCallback(ctx context.Context, callbackURL string, attempts AttemptReader) CallbackResult {
	params, err := ParseCallbackParameters(callbackURL)
	if err != nil {
		return CallbackResult{
			Error:            oauthmodel.ErrorCodeInvalidRequest,
			ErrorDescription: "callback url could not be parsed",
		}
	}

	if params.Error != "" {
		return CallbackResult{
			Error:            params.Error,
			ErrorDescription: params.ErrorDescription,
		}
	}

	var expected string
	if attempts != nil {
		if attempt, err := attempts.PendingAttempt(ctx); err == nil && attempt != nil {
			expected = attempt.State
		}
	}
	if expected == "" || params.State == "" ||
		subtle.ConstantTimeCompare([]byte(expected), []byte(params.State)) != 1 {
		return CallbackResult{
			Error:            oauthmodel.ErrorCodeInvalidState,
			ErrorDescription: "state parameter does not match the pending login attempt",
		}
	}

	if params.Code == "" {
		return CallbackResult{
			Error:            oauthmodel.ErrorCodeMissingCode,
			ErrorDescription: "authorization code missing from callback",
		}
	}

	return CallbackResult{IsValid: true, Code: params.Code}
}

// IsCallback reports whether a URL carries authorization response parameters.
func IsCallback(u *url.URL) bool {
	q := u.Query()
	return q.Has(oauthmodel.ParamCode) || q.Has(oauthmodel.ParamError)
}

// StripCallbackParams returns u without the transient authorization response
// parameters so a reload cannot replay the code.
func StripCallbackParams(u *url.URL) string {
	clean := *u
	q := clean.Query()
	for _, p := range oauthmodel.TransientCallbackParams {
		q.Del(p)
	}
	clean.RawQuery = q.Encode()
	return clean.String()
}
