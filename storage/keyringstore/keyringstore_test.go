package keyringstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/jrsteele09/go-customer-auth/storage/keyringstore"
	"github.com/jrsteele09/go-customer-auth/storage/storagetest"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStore_Backend(t *testing.T) {
	storagetest.RunBackendSuite(t, func(t *testing.T) storage.Backend {
		keyring.MockInit()
		s, err := keyringstore.New("com.customer-auth.test")
		require.NoError(t, err)
		return s
	})
}

func TestKeyringStore_ServiceRequired(t *testing.T) {
	_, err := keyringstore.New("")
	require.Error(t, err)
}

func TestKeyringStore_ProviderError(t *testing.T) {
	keyring.MockInitWithError(errors.New("keychain locked"))
	t.Cleanup(keyring.MockInit)

	s, err := keyringstore.New("com.customer-auth.test")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "customer_tokens")
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
	require.Contains(t, err.Error(), "keychain locked")
}
