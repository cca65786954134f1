package session

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-customer-auth/customerapi"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EnsureFreshClient waits for any needed refresh to be persisted and returns
// the API client carrying the current access token. Callers must go through
// it before each use so a request never carries a token that a refresh has
// already replaced.
func (s *Session) EnsureFreshClient(ctx context.Context) (*customerapi.Client, error) {
	b, err := s.store.AutoRefreshTokens(ctx, false)
	if err != nil {
		if ctx.Err() == nil {
			s.refreshFailed(err)
		}
		return nil, errors.Wrap(err, "[Session.EnsureFreshClient] refresh")
	}
	if b == nil {
		// no refresh token: the stored token is usable until hard expiry
		b = s.store.GetStoredTokens(ctx)
		if b == nil || !s.store.Now().Before(b.ExpiresAt()) {
			return nil, apperrors.ErrNotAuthenticated
		}
	}
	s.api.UpdateAccessToken(b.AccessToken)
	return s.api, nil
}

// FetchCustomer queries the signed in customer and caches the result for
// CustomerData. An auth failure from the API ends the session.
func (s *Session) FetchCustomer(ctx context.Context) (json.RawMessage, error) {
	client, err := s.EnsureFreshClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Query(ctx, s.customerQuery)
	if err != nil {
		s.HandleAPIError(ctx, err)
		return nil, errors.Wrap(err, "[Session.FetchCustomer] query")
	}

	var envelope struct {
		Customer json.RawMessage `json:"customer"`
	}
	data := resp.Data
	if json.Unmarshal(resp.Data, &envelope) == nil && len(envelope.Customer) > 0 {
		data = envelope.Customer
	}

	s.mu.Lock()
	if s.tokens != nil {
		s.customer = append(json.RawMessage(nil), data...)
	}
	s.mu.Unlock()
	return data, nil
}

// HandleAPIError ends the session when err says the access token is no
// longer accepted. It reports whether it did.
func (s *Session) HandleAPIError(ctx context.Context, err error) bool {
	if !customerapi.IsAuthFailure(err) {
		return false
	}
	log.Warn().Err(err).Msg("customer api rejected the access token, signing out")
	if lerr := s.logout(ctx, false); lerr != nil {
		log.Err(lerr).Msg("local sign out failed")
	}
	return true
}
