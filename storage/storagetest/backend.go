// Package storagetest holds the behaviour every storage.Backend must share,
// run against each implementation from its own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/stretchr/testify/require"
)

// RunBackendSuite exercises the storage.Backend contract.
func RunBackendSuite(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Get(ctx, "customer_tokens")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "customer_oauth_state", "S1"))
		got, err := b.Get(ctx, "customer_oauth_state")
		require.NoError(t, err)
		require.Equal(t, "S1", got)
	})

	t.Run("overwrite", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "customer_tokens", `{"accessToken":"a"}`))
		require.NoError(t, b.Set(ctx, "customer_tokens", `{"accessToken":"b"}`))
		got, err := b.Get(ctx, "customer_tokens")
		require.NoError(t, err)
		require.Equal(t, `{"accessToken":"b"}`, got)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "customer_oauth_nonce", "n"))
		require.NoError(t, b.Delete(ctx, "customer_oauth_nonce"))
		_, err := b.Get(ctx, "customer_oauth_nonce")
		require.ErrorIs(t, err, storage.ErrNotFound)

		// idempotent
		require.NoError(t, b.Delete(ctx, "customer_oauth_nonce"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "customer_oauth_state", "S1"))
		require.NoError(t, b.Set(ctx, "customer_oauth_code_verifier", "V1"))
		require.NoError(t, b.Delete(ctx, "customer_oauth_state"))
		got, err := b.Get(ctx, "customer_oauth_code_verifier")
		require.NoError(t, err)
		require.Equal(t, "V1", got)
	})
}
