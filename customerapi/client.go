// Package customerapi is a minimal bearer-authenticated client for the
// Shopify Customer Account GraphQL API.
package customerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL    = "https://shopify.com"
	DefaultAPIVersion = "2025-07"
	defaultUserAgent  = "go-customer-auth/1.0"
	maxBodyBytes      = 4 << 20
)

// ErrNoAccessToken is returned without sending anything when the client has
// no token, e.g. after logout.
var ErrNoAccessToken = errors.New("no access token: customer is not signed in")

// Operation is a GraphQL request body.
type Operation struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// GraphQLError is one entry of a response's errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is a GraphQL response body. Data is left raw for the caller.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// Client sends operations for one shop. Safe for concurrent use; the access
// token can be swapped in place with UpdateAccessToken.
type Client struct {
	shopID     string
	baseURL    string
	apiVersion string
	userAgent  string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBaseURL points the client at another host, used by tests.
func WithBaseURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithAPIVersion(v string) Option {
	return func(cl *Client) {
		if v != "" {
			cl.apiVersion = v
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

func New(shopID, accessToken string, opts ...Option) *Client {
	c := &Client{
		shopID:      shopID,
		accessToken: accessToken,
		baseURL:     DefaultBaseURL,
		apiVersion:  DefaultAPIVersion,
		userAgent:   defaultUserAgent,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint is the GraphQL URL for the shop.
// Example: https://shopify.com/12345/account/customer/api/2025-07/graphql
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/%s/account/customer/api/%s/graphql", c.baseURL, url.PathEscape(c.shopID), c.apiVersion)
}

// UpdateAccessToken swaps the bearer token. An empty token makes every
// subsequent call fail locally with ErrNoAccessToken.
func (c *Client) UpdateAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the token currently attached to requests.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Query sends op. A 200 response carrying errors returns both the response
// and an *APIError so partial data is not lost.
func (c *Client) Query(ctx context.Context, op Operation) (*Response, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, ErrNoAccessToken
	}
	if op.Variables == nil {
		op.Variables = map[string]any{}
	}

	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode graphql operation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newHTTPError(res.StatusCode, raw)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(out.Errors) > 0 {
		return &out, &APIError{
			StatusCode: res.StatusCode,
			Message:    out.Errors[0].Message,
			Errors:     out.Errors,
		}
	}
	return &out, nil
}

// LocalizedQuery injects @inContext(language: ...) into op before sending.
func (c *Client) LocalizedQuery(ctx context.Context, op Operation, language string) (*Response, error) {
	code, err := LanguageCode(language)
	if err != nil {
		return nil, err
	}
	op.Query = InjectInContext(op.Query, code)
	return c.Query(ctx, op)
}
