package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"golang.org/x/oauth2"
)

// ErrorKind classifies a token endpoint failure so callers can choose between
// retrying, sending the customer back to login, or reporting a setup problem.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	// KindInvalidShopID: the token endpoint redirected (301), the shop id is wrong.
	KindInvalidShopID
	// KindInvalidGrant: the code was rejected, usually a verifier mismatch or
	// an expired or already used code.
	KindInvalidGrant
	// KindRefreshInvalid: the refresh token is expired or revoked.
	KindRefreshInvalid
	// KindInvalidClient: the client id is not registered for this shop.
	KindInvalidClient
	// KindInvalidToken: 401 invalid_token, the Origin header is missing or
	// does not match the registered JavaScript origin.
	KindInvalidToken
	// KindForbidden: 403, the User-Agent header is missing or rejected.
	KindForbidden
)

var kindNames = map[ErrorKind]string{
	KindTransient:      "transient",
	KindInvalidShopID:  "invalid_shop_id",
	KindInvalidGrant:   "invalid_grant",
	KindRefreshInvalid: "refresh_invalid",
	KindInvalidClient:  "invalid_client",
	KindInvalidToken:   "invalid_token",
	KindForbidden:      "forbidden",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels matched by errors.Is against an *ExchangeError.
var (
	ErrTransient      = errors.New("token endpoint unavailable")
	ErrInvalidShopID  = errors.New("misconfigured shop identifier")
	ErrInvalidGrant   = errors.New("authorization code rejected: verifier mismatch or expired code")
	ErrRefreshInvalid = errors.New("refresh token invalid, expired or revoked")
	ErrInvalidClient  = errors.New("invalid client id")
	ErrInvalidToken   = errors.New("missing or mismatched Origin header")
	ErrForbidden      = errors.New("missing or incorrect User-Agent header")
)

var kindSentinels = map[ErrorKind]error{
	KindTransient:      ErrTransient,
	KindInvalidShopID:  ErrInvalidShopID,
	KindInvalidGrant:   ErrInvalidGrant,
	KindRefreshInvalid: ErrRefreshInvalid,
	KindInvalidClient:  ErrInvalidClient,
	KindInvalidToken:   ErrInvalidToken,
	KindForbidden:      ErrForbidden,
}

// ExchangeError is returned by Client for every failed token request.
type ExchangeError struct {
	Kind       ErrorKind
	Grant      oauthmodel.GrantType
	StatusCode int
	// Code and Description are the RFC 6749 error fields when the endpoint
	// returned them.
	Code        string
	Description string
	// Err is the underlying transport error, if any.
	Err error
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("%s failed: %s", e.Grant, kindSentinels[e.Kind])
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " - " + e.Description
		}
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

func (e *ExchangeError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Retryable reports whether the same request may succeed later.
func (e *ExchangeError) Retryable() bool {
	return e.Kind == KindTransient
}

// ReloginRequired reports whether the customer must start a new login.
func (e *ExchangeError) ReloginRequired() bool {
	return e.Kind == KindInvalidGrant || e.Kind == KindRefreshInvalid
}

// ConfigError reports a deployment problem that no retry or login can fix.
func (e *ExchangeError) ConfigError() bool {
	switch e.Kind {
	case KindInvalidShopID, KindInvalidClient, KindInvalidToken, KindForbidden:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient token endpoint failure.
func IsRetryable(err error) bool {
	var xerr *ExchangeError
	return errors.As(err, &xerr) && xerr.Retryable()
}

// classify maps an x/oauth2 error onto the Shopify taxonomy.
func classify(grant oauthmodel.GrantType, err error) *ExchangeError {
	xerr := &ExchangeError{Kind: KindTransient, Grant: grant, Err: err}

	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return xerr
	}

	xerr.Code = rerr.ErrorCode
	xerr.Description = rerr.ErrorDescription
	if xerr.Code == "" && len(rerr.Body) > 0 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(rerr.Body, &body) == nil {
			xerr.Code = body.Error
			xerr.Description = body.ErrorDescription
		}
	}
	if rerr.Response != nil {
		xerr.StatusCode = rerr.Response.StatusCode
	}

	switch {
	case xerr.StatusCode == http.StatusMovedPermanently:
		xerr.Kind = KindInvalidShopID
	case xerr.Code == oauthmodel.ErrorCodeInvalidGrant:
		if grant == oauthmodel.RefreshTokenGrant {
			xerr.Kind = KindRefreshInvalid
		} else {
			xerr.Kind = KindInvalidGrant
		}
	case xerr.Code == oauthmodel.ErrorCodeInvalidClient:
		xerr.Kind = KindInvalidClient
	case xerr.Code == oauthmodel.ErrorCodeInvalidToken:
		xerr.Kind = KindInvalidToken
	case xerr.StatusCode == http.StatusForbidden:
		xerr.Kind = KindForbidden
	}
	return xerr
}
