package oauthmodel

// Error codes carried in the error query parameter of a callback or in the
// error field of a token endpoint response. The first group is produced by
// the provider, the second by local callback validation.
const (
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidClient  = "invalid_client"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeLoginRequired  = "login_required"

	ErrorCodeInvalidState = "invalid_state"
	ErrorCodeMissingCode  = "missing_code"
)
