package customerapi_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/stretchr/testify/require"
)

const customerQuery = `query CustomerProfile { customer { id emailAddress { emailAddress } } }`

func newServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_Query(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/12345/account/customer/api/2025-07/graphql", r.URL.Path)
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "CustomerProfile", body["operationName"])
		require.Equal(t, customerQuery, body["query"])
		require.Equal(t, map[string]any{}, body["variables"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"customer":{"id":"gid://shopify/Customer/1"}},"extensions":{"cost":{"requestedQueryCost":1}}}`))
	})

	c := customerapi.New("12345", "at-1", customerapi.WithBaseURL(srv.URL))
	resp, err := c.Query(t.Context(), customerapi.Operation{OperationName: "CustomerProfile", Query: customerQuery})
	require.NoError(t, err)
	require.JSONEq(t, `{"customer":{"id":"gid://shopify/Customer/1"}}`, string(resp.Data))
	require.Contains(t, resp.Extensions, "cost")
}

func TestClient_Endpoint(t *testing.T) {
	c := customerapi.New("12345", "at", customerapi.WithAPIVersion("2025-10"))
	require.Equal(t, "https://shopify.com/12345/account/customer/api/2025-10/graphql", c.Endpoint())
}

func TestClient_GraphQLErrorsIn200(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"customer":null},"errors":[{"message":"Access denied","extensions":{"code":"ACCESS_DENIED"}}]}`))
	})

	c := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL))
	resp, err := c.Query(t.Context(), customerapi.Operation{Query: customerQuery})
	require.Error(t, err)
	require.NotNil(t, resp, "data is returned alongside errors")
	require.JSONEq(t, `{"customer":null}`, string(resp.Data))

	var apiErr *customerapi.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
	require.Len(t, apiErr.Errors, 1)
	require.Equal(t, "ACCESS_DENIED", apiErr.Errors[0].Extensions["code"])
	require.False(t, apiErr.IsAuthFailure())
}

func TestClient_HTTPErrors(t *testing.T) {
	t.Run("500 gets token hint", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL)).Query(t.Context(), customerapi.Operation{Query: customerQuery})

		var apiErr *customerapi.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		require.Contains(t, apiErr.Error(), "check token parameters")
	})

	t.Run("401 is an auth failure", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`))
		})
		_, err := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL)).Query(t.Context(), customerapi.Operation{Query: customerQuery})
		require.True(t, customerapi.IsAuthFailure(err))
		require.Contains(t, err.Error(), "Invalid API key")
	})

	t.Run("expired token message is an auth failure", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"errors":[{"message":"Token expired"}]}`))
		})
		_, err := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL)).Query(t.Context(), customerapi.Operation{Query: customerQuery})
		require.True(t, customerapi.IsAuthFailure(err))
	})
}

func TestClient_EmptyTokenFailsLocally(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})

	c := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL))
	c.UpdateAccessToken("")
	_, err := c.Query(t.Context(), customerapi.Operation{Query: customerQuery})
	require.ErrorIs(t, err, customerapi.ErrNoAccessToken)
	require.Zero(t, calls.Load())
}

func TestClient_UpdateAccessToken(t *testing.T) {
	var seen atomic.Value
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	c := customerapi.New("12345", "old", customerapi.WithBaseURL(srv.URL))
	c.UpdateAccessToken("new")
	_, err := c.Query(t.Context(), customerapi.Operation{Query: customerQuery})
	require.NoError(t, err)
	require.Equal(t, "Bearer new", seen.Load())
}

func TestClient_LocalizedQuery(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var op customerapi.Operation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&op))
		require.Equal(t, `query CustomerProfile @inContext(language: FR) { customer { id emailAddress { emailAddress } } }`, op.Query)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	c := customerapi.New("12345", "at", customerapi.WithBaseURL(srv.URL))
	_, err := c.LocalizedQuery(t.Context(), customerapi.Operation{Query: customerQuery}, "fr")
	require.NoError(t, err)

	_, err = c.LocalizedQuery(t.Context(), customerapi.Operation{Query: customerQuery}, "??")
	require.Error(t, err)
}
