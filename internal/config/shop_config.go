package config

type ShopConfig interface {
	GetShopID() string
	GetClientID() string
	GetRedirectURI() string
	GetScope() string
	GetLocale() string
	GetAuthHost() string
	GetUserAgent() string
	GetOrigin() string
	GetAPIVersion() string
	GetPostLogoutRedirectURI() string
	GetVerifyIDToken() bool
}

// Shop holds the Customer Account API client registration.
type Shop struct {
	ShopID                string `env:"SHOPIFY_SHOP_ID"`
	ClientID              string `env:"SHOPIFY_CUSTOMER_CLIENT_ID"`
	RedirectURI           string `env:"SHOPIFY_REDIRECT_URI" envDefault:"http://127.0.0.1:9877/callback"`
	Scope                 string `env:"SHOPIFY_SCOPE" envDefault:"openid email customer-account-api:full"`
	Locale                string `env:"SHOPIFY_LOCALE"`
	AuthHost              string `env:"SHOPIFY_AUTH_HOST" envDefault:"shopify.com"`
	UserAgent             string `env:"SHOPIFY_USER_AGENT"`
	Origin                string `env:"SHOPIFY_ORIGIN"`
	APIVersion            string `env:"SHOPIFY_API_VERSION" envDefault:"2025-07"`
	PostLogoutRedirectURI string `env:"SHOPIFY_POST_LOGOUT_REDIRECT_URI"`
	VerifyIDToken         bool   `env:"SHOPIFY_VERIFY_ID_TOKEN" envDefault:"true"`
}

var _ ShopConfig = Shop{}

func (s Shop) GetShopID() string {
	return s.ShopID
}

func (s Shop) GetClientID() string {
	return s.ClientID
}

func (s Shop) GetRedirectURI() string {
	return s.RedirectURI
}

func (s Shop) GetScope() string {
	return s.Scope
}

func (s Shop) GetLocale() string {
	return s.Locale
}

func (s Shop) GetAuthHost() string {
	return s.AuthHost
}

// GetUserAgent returns the User-Agent sent to the token endpoint. Shopify
// answers 403 when it is missing, so callers fall back to a built-in value.
func (s Shop) GetUserAgent() string {
	return s.UserAgent
}

func (s Shop) GetOrigin() string {
	return s.Origin
}

func (s Shop) GetAPIVersion() string {
	return s.APIVersion
}

func (s Shop) GetPostLogoutRedirectURI() string {
	return s.PostLogoutRedirectURI
}

func (s Shop) GetVerifyIDToken() bool {
	return s.VerifyIDToken
}
