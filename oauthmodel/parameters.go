package oauthmodel

// Query and form parameter names used on the authorize, token, callback and
// logout endpoints.
const (
	ParamClientID            = "client_id"
	ParamScope               = "scope"
	ParamRedirectURI         = "redirect_uri"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamPrompt              = "prompt"
	ParamLocale              = "locale"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"

	ParamCode             = "code"
	ParamError            = "error"
	ParamErrorDescription = "error_description"

	ParamIDTokenHint           = "id_token_hint"
	ParamPostLogoutRedirectURI = "post_logout_redirect_uri"
)

// CallbackParameters holds the standard OAuth2 authorization response
// parameters read from the redirect URI query string.
type CallbackParameters struct {
	// Code is the single-use authorization code.
	Code string

	// State echoes the value sent on the authorize request. Compared with the
	// pending attempt to reject forged callbacks.
	State string

	// Error is set by the provider when authorization failed.
	// Example: "access_denied", "login_required"
	Error string

	// ErrorDescription is the provider's human readable error text.
	ErrorDescription string
}

// TransientCallbackParams lists the parameters that must not survive in the
// visible URL once a callback has been handled.
var TransientCallbackParams = []string{
	ParamCode,
	ParamState,
	ParamError,
	ParamErrorDescription,
}
