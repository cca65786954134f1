package oauthmodel

// ResponseType represents the OAuth 2.0 response type.
type ResponseType string

const (
	// CodeResponseType requests an authorization code from the authorize endpoint.
	// Example: /oauth/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// This is the only method the Customer Account API accepts from public clients.
	CodeMethodTypeS256 CodeMethodType = "S256"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: client_id, code, redirect_uri, code_verifier
	// Returns: access_token, refresh_token, id_token
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: client_id, refresh_token
	// Returns: new access_token and a rotated refresh_token, no id_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// PromptType controls whether the authorize endpoint may show UI.
type PromptType string

const (
	// PromptNone asks the provider to answer without interaction. Used for
	// silent session checks; the provider replies with error=login_required
	// when the customer has no session.
	PromptNone PromptType = "none"
)
