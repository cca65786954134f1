package errors

import (
	"errors"
	"fmt"
)

// Common error types for the customer account client
var (
	// Configuration errors
	ErrMissingShopID      = errors.New("missing shop id")
	ErrMissingClientID    = errors.New("missing client id")
	ErrMissingRedirectURI = errors.New("missing redirect uri")
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")
	ErrInvalidLocale      = errors.New("invalid locale")

	// Session errors
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrSessionCleared    = errors.New("session cleared while request was in flight")
	ErrSessionDisposed   = errors.New("session disposed")
	ErrNoPendingExchange = errors.New("no failed exchange to retry")
	ErrNonceMismatch     = errors.New("id token nonce mismatch")

	// Storage errors
	ErrNotFound    = errors.New("not found")
	ErrCorruptData = errors.New("corrupt stored data")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
