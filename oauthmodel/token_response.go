package oauthmodel

// TokenResponse represents the JSON body returned by the Customer Account
// token endpoint for both the authorization_code and refresh_token grants
// (RFC 6749 section 5.1).
type TokenResponse struct {
	// AccessToken is the bearer credential for the Customer Account API.
	// Usage: Authorization: Bearer <access_token>
	AccessToken string `json:"access_token"`

	// TokenType is the token type, "Bearer" for Shopify.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime of the access token in seconds.
	// Example: 7200
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is used with grant_type=refresh_token. Absent means the
	// bundle cannot be renewed silently.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space separated list of granted scopes.
	// Example: "openid email customer-account-api:full"
	Scope string `json:"scope,omitempty"`

	// IDToken is the OpenID Connect ID token. Only returned by the
	// authorization_code grant; refresh responses never carry one.
	IDToken *string `json:"id_token,omitempty"`
}
