package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/token"
)

// State is the derived authentication state of a Session.
type State string

const (
	StateIdle             State = "idle"
	StateAuthenticating   State = "authenticating"
	StateExchangingTokens State = "exchanging_tokens"
	StateAuthenticated    State = "authenticated"
	StateError            State = "error"
)

// ExchangeMode decides what HandleCallback does with a valid code.
type ExchangeMode string

const (
	// ExchangeAuto redeems the code at the token endpoint immediately.
	ExchangeAuto ExchangeMode = "auto"
	// ExchangeManual hands the code to the caller, e.g. for a server side
	// exchange.
	ExchangeManual ExchangeMode = "manual"
)

// phase is the in-flight operation flag that State is derived from.
type phase int

const (
	phaseNone phase = iota
	phaseAuthenticating
	phaseExchanging
)

// CallbackError is a failed callback: either a provider error or one of the
// local codes invalid_state, missing_code, invalid_request.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization failed: %s", e.Code)
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}

// CallbackOutcome is what HandleCallback returns, and what a duplicate call
// with the same code gets back.
type CallbackOutcome struct {
	Result auth.CallbackResult
	// Code is set in manual mode only.
	Code string
	// Tokens is the stored bundle after a successful automatic exchange.
	Tokens *token.Bundle
	// Retryable is set when the exchange failed transiently. RetryExchange
	// can redeem the same code again.
	Retryable bool
	// Replayed is set on the copy returned to a duplicate call.
	Replayed bool
}

// SilentOutcome is the answer of a SilentCheck.
type SilentOutcome int

const (
	StillAuthenticated SilentOutcome = iota
	LoginRequired
	CheckError
)

func (o SilentOutcome) String() string {
	switch o {
	case StillAuthenticated:
		return "still_authenticated"
	case LoginRequired:
		return "login_required"
	case CheckError:
		return "check_error"
	}
	return fmt.Sprintf("silent_outcome(%d)", int(o))
}

type SilentResult struct {
	Outcome SilentOutcome
	Tokens  *token.Bundle
	Err     error
}

// Completion is the post-login completion signal. Optimistic means the
// customer fetch did not finish within the fallback timeout.
type Completion struct {
	Customer   json.RawMessage
	Optimistic bool
	Err        error
}

// Diagnostics is a point in time view of the session for debugging. It never
// contains token values.
type Diagnostics struct {
	State          State                `json:"state"`
	ExchangeMode   ExchangeMode         `json:"exchangeMode"`
	HasTokens      bool                 `json:"hasTokens"`
	CanRefresh     bool                 `json:"canRefresh"`
	Expired        bool                 `json:"expired"`
	ExpiresAt      *time.Time           `json:"expiresAt,omitempty"`
	Scope          string               `json:"scope,omitempty"`
	IDToken        *token.IDTokenClaims `json:"idToken,omitempty"`
	PendingAttempt bool                 `json:"pendingAttempt"`
	RetryableCode  bool                 `json:"retryableCode"`
	Generation     uint64               `json:"generation"`
	LastError      string               `json:"lastError,omitempty"`
}
