package main

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-customer-auth/internal/config"
	"github.com/jrsteele09/go-customer-auth/server"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/storage/sqlitestore"
	"github.com/stretchr/testify/require"
)

func TestShopConfig(t *testing.T) {
	cfg := shopConfig(config.Shop{
		ShopID:      "12345",
		ClientID:    "shp_client",
		RedirectURI: "http://127.0.0.1:9877/callback",
		Scope:       "openid email",
		Locale:      "fr",
		AuthHost:    "shopify.com",
		Origin:      "https://shop.example.com",
	})
	require.NoError(t, cfg.Validate())
	require.Equal(t, "12345", cfg.ShopID)
	require.Equal(t, "fr", cfg.Locale)
	require.Equal(t, "https://shop.example.com", cfg.Origin)
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		store      config.Store
		wantCloser bool
	}{
		{name: "memory", store: config.Store{Driver: config.StoreDriverMemory}},
		{name: "file", store: config.Store{Driver: config.StoreDriverFile, Path: filepath.Join(dir, "tokens.json")}},
		{name: "encrypted file", store: config.Store{Driver: config.StoreDriverFile, Path: filepath.Join(dir, "sealed.json"), Key: "passphrase"}},
		{name: "sqlite", store: config.Store{Driver: config.StoreDriverSQLite, Path: sqlitestore.MemoryPath}, wantCloser: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, closer, err := openBackend(t.Context(), tt.store)
			require.NoError(t, err)
			if closer != nil {
				t.Cleanup(func() { _ = closer.Close() })
			}
			require.Equal(t, tt.wantCloser, closer != nil)

			require.NoError(t, backend.Set(t.Context(), "k", "v"))
			got, err := backend.Get(t.Context(), "k")
			require.NoError(t, err)
			require.Equal(t, "v", got)
		})
	}

	_, _, err := openBackend(t.Context(), config.Store{Driver: "etcd"})
	require.ErrorContains(t, err, `unknown store driver "etcd"`)
}

func TestReadOperation(t *testing.T) {
	op, err := readOperation("", "", "", "")
	require.NoError(t, err)
	require.Nil(t, op)

	op, err = readOperation(`query Orders($first: Int!) { customer { orders(first: $first) { nodes { id } } } }`, "", "Orders", `{"first":5}`)
	require.NoError(t, err)
	require.Equal(t, "Orders", op.OperationName)
	require.EqualValues(t, 5, op.Variables["first"])

	_, err = readOperation("query { customer { id } }", "op.graphql", "", "")
	require.Error(t, err)

	_, err = readOperation("", "", "", `{"first":5}`)
	require.Error(t, err)

	_, err = readOperation("query { customer { id } }", "", "", `[1,2]`)
	require.Error(t, err)
}

func TestSettleCallback_RejectedCallbackIsReturned(t *testing.T) {
	rejected := &session.CallbackError{Code: "invalid_state"}
	err := settleCallback(t.Context(), nil, server.CallbackResult{
		Outcome: &session.CallbackOutcome{},
		Err:     rejected,
	}, io.Discard)
	require.True(t, errors.Is(err, rejected))
}

func TestRun_UnknownCommand(t *testing.T) {
	require.Error(t, run(nil))
	require.ErrorContains(t, run([]string{"nope"}), `unknown command "nope"`)
}
