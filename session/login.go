package session

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-customer-auth/auth"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/token"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Login starts an interactive login: it persists a fresh pending attempt,
// which replaces any earlier one, and navigates to the authorize URL.
func (s *Session) Login(ctx context.Context, opts auth.AuthorizationOptions) error {
	if s.isDisposed() {
		return apperrors.ErrSessionDisposed
	}

	req, err := auth.BuildAuthorizationURL(s.cfg, opts)
	if err != nil {
		s.fail(err)
		return pkgerrors.Wrap(err, "[Session.Login] build authorization url")
	}
	if err := s.store.SavePendingAttempt(ctx, req.Attempt()); err != nil {
		s.fail(err)
		return pkgerrors.Wrap(err, "[Session.Login] save pending attempt")
	}

	s.update(func() {
		s.phase = phaseAuthenticating
		s.lastErr = nil
		s.manualCode = ""
		s.failed = nil
		s.completion = &completion{}
	})
	log.Info().Str("attempt_id", req.AttemptID).Bool("silent", opts.Prompt != "").Msg("starting customer login")

	if err := s.navigator.Navigate(ctx, req.URL); err != nil {
		s.fail(err)
		return pkgerrors.Wrap(err, "[Session.Login] navigate")
	}
	return nil
}

// HandleCallback processes the redirect back from the authorize endpoint.
//
// The pending attempt is cleared whatever the result, so a reload of the
// callback URL cannot redeem the code again. A second call for a code that
// was already handled returns the first outcome without any network call.
func (s *Session) HandleCallback(ctx context.Context, callbackURL string) (*CallbackOutcome, error) {
	if s.isDisposed() {
		return nil, apperrors.ErrSessionDisposed
	}

	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	key := replayKey(callbackURL)
	if prev, ok := s.replayed[key]; ok {
		log.Debug().Msg("callback already handled, returning first outcome")
		out := *prev
		out.Replayed = true
		return &out, outcomeErr(prev)
	}

	attempt, readErr := s.store.PendingAttempt(ctx)
	if readErr != nil {
		log.Err(readErr).Msg("pending attempt unreadable")
	}
	result := auth.ValidateCallback(ctx, callbackURL, auth.AttemptReaderFunc(func(context.Context) (*auth.PendingAuthAttempt, error) {
		return attempt, readErr
	}))

	if err := s.store.ClearPendingAttempt(ctx); err != nil {
		log.Err(err).Msg("failed to clear pending attempt")
	}

	out := &CallbackOutcome{Result: result}
	defer s.remember(key, out)

	if !result.IsValid {
		err := &CallbackError{Code: result.Error, Description: result.ErrorDescription}
		log.Warn().Str("error", result.Error).Msg("authorization callback rejected")
		s.fail(err)
		return out, err
	}

	if s.mode == ExchangeManual {
		out.Code = result.Code
		s.update(func() {
			s.phase = phaseNone
			s.lastErr = nil
			s.manualCode = result.Code
		})
		log.Info().Msg("authorization code ready for manual exchange")
		return out, nil
	}

	pe := &pendingExchange{
		key:          key,
		code:         result.Code,
		codeVerifier: attempt.CodeVerifier,
		nonce:        attempt.Nonce,
		generation:   s.store.Generation(),
	}
	b, err := s.exchange(ctx, pe)
	if err != nil {
		out.Retryable = token.IsRetryable(err)
		return out, err
	}
	out.Tokens = b
	return out, nil
}

// RetryExchange redeems the code from the last transiently failed exchange
// again. Nothing retries on its own.
func (s *Session) RetryExchange(ctx context.Context) (*token.Bundle, error) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	s.mu.Lock()
	pe := s.failed
	s.mu.Unlock()
	if pe == nil {
		return nil, apperrors.ErrNoPendingExchange
	}
	b, err := s.exchange(ctx, pe)
	if err != nil {
		return nil, err
	}
	if prev, ok := s.replayed[pe.key]; ok {
		prev.Tokens = b
		prev.Retryable = false
	}
	return b, nil
}

// exchange redeems pe and stores the result. Callers hold callbackMu.
func (s *Session) exchange(ctx context.Context, pe *pendingExchange) (*token.Bundle, error) {
	s.update(func() {
		s.phase = phaseExchanging
		s.failed = nil
	})

	issuedAt := s.store.Now()
	resp, err := s.exchanger.ExchangeCodeForTokens(ctx, pe.code, pe.codeVerifier)
	if err != nil {
		s.update(func() {
			s.phase = phaseNone
			s.lastErr = err
			if token.IsRetryable(err) {
				s.failed = pe
			}
		})
		return nil, pkgerrors.Wrap(err, "[Session.exchange] token exchange")
	}

	if s.verifier != nil && resp.IDToken != nil {
		if err := s.verifier.Verify(ctx, *resp.IDToken, pe.nonce); err != nil {
			log.Warn().Err(err).Msg("id token rejected")
			s.fail(err)
			return nil, pkgerrors.Wrap(err, "[Session.exchange] verify id token")
		}
	}

	b, err := s.store.StoreTokensIfCurrent(ctx, resp, issuedAt, pe.generation)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionCleared) {
			s.update(func() { s.phase = phaseNone })
		} else {
			s.fail(err)
		}
		return nil, pkgerrors.Wrap(err, "[Session.exchange] store tokens")
	}

	s.update(func() {
		s.phase = phaseNone
		s.lastErr = nil
	})
	log.Info().Int64("expires_in", b.ExpiresIn).Bool("refreshable", b.CanRefresh()).Msg("customer signed in")
	return b, nil
}

// Logout clears the tokens and any pending attempt, and navigates to the
// provider logout endpoint when an ID token was held and a post logout
// redirect is configured. Local state is cleared even if navigation fails.
func (s *Session) Logout(ctx context.Context) error {
	return s.logout(ctx, true)
}

func (s *Session) logout(ctx context.Context, navigate bool) error {
	var idToken string
	if b := s.store.GetStoredTokens(ctx); b != nil && b.IDToken != nil {
		idToken = *b.IDToken
	}

	var errs []error
	if err := s.store.ClearStoredTokens(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.ClearPendingAttempt(ctx); err != nil {
		errs = append(errs, err)
	}

	s.update(func() {
		s.phase = phaseNone
		s.lastErr = nil
		s.manualCode = ""
		s.failed = nil
		s.customer = nil
		s.completion = &completion{}
	})
	s.api.UpdateAccessToken("")
	log.Info().Msg("customer signed out")

	if navigate && idToken != "" && s.postLogoutRedirect != "" {
		if err := s.navigator.Navigate(ctx, auth.BuildLogoutURL(s.cfg, idToken, s.postLogoutRedirect)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return pkgerrors.Wrap(err, "[Session.Logout]")
	}
	return nil
}

func (s *Session) remember(key string, out *CallbackOutcome) {
	if _, ok := s.replayed[key]; !ok {
		s.replayOrder = append(s.replayOrder, key)
	}
	s.replayed[key] = out
	for len(s.replayOrder) > replayCacheSize {
		delete(s.replayed, s.replayOrder[0])
		s.replayOrder = s.replayOrder[1:]
	}
}

// replayKey identifies a callback by its code, falling back to the raw URL
// for callbacks without one.
func replayKey(callbackURL string) string {
	if p, err := auth.ParseCallbackParameters(callbackURL); err == nil && p.Code != "" {
		return "code:" + p.Code
	}
	return "url:" + callbackURL
}

func outcomeErr(o *CallbackOutcome) error {
	if !o.Result.IsValid {
		return &CallbackError{Code: o.Result.Error, Description: o.Result.ErrorDescription}
	}
	if o.Code == "" && o.Tokens == nil {
		return errors.New("authorization code exchange failed")
	}
	return nil
}
