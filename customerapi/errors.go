package customerapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError covers both non-2xx responses and 200 responses whose body has an
// errors array. Errors keeps the raw list for the caller to inspect.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []GraphQLError
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 && e.StatusCode >= 200 && e.StatusCode < 300 {
		return fmt.Sprintf("graphql error: %s", e.Message)
	}
	return fmt.Sprintf("customer api HTTP %d: %s", e.StatusCode, e.Message)
}

// IsAuthFailure reports whether the error means the access token is no
// longer accepted, the signal to end the session.
func (e *APIError) IsAuthFailure() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	for _, msg := range e.messages() {
		m := strings.ToLower(msg)
		if strings.Contains(m, "invalid_token") || strings.Contains(m, "expired") {
			return true
		}
	}
	return false
}

func (e *APIError) messages() []string {
	out := []string{e.Message}
	for _, ge := range e.Errors {
		out = append(out, ge.Message)
		if code, ok := ge.Extensions["code"].(string); ok {
			out = append(out, code)
		}
	}
	return out
}

// IsAuthFailure reports whether err is an *APIError signalling a dead token.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuthFailure()
}

func newHTTPError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}

	var parsed struct {
		Errors  json.RawMessage `json:"errors"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		var list []GraphQLError
		var single string
		switch {
		case json.Unmarshal(parsed.Errors, &list) == nil && len(list) > 0:
			e.Errors = list
			e.Message = list[0].Message
		case json.Unmarshal(parsed.Errors, &single) == nil && single != "":
			e.Message = single
		case parsed.Message != "":
			e.Message = parsed.Message
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if status == http.StatusInternalServerError {
		e.Message += " (check token parameters: the access token may be malformed or issued for another shop)"
	}
	return e
}
