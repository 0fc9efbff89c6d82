// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package secrets_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func init() {
	keyring.MockInit()
}

// testService gives each test its own keyring namespace; the mock keyring
// is shared across the package.
func testService(t *testing.T) string {
	t.Helper()
	return "visualfin-test-" + strings.ReplaceAll(t.Name(), "/", "-")
}

var _ secrets.Store = (*secrets.KeyringStore)(nil)

func TestKeyringStore_ProviderKeyLifecycle(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	require.NoError(t, ks.Store(svc, "google", "AIza-first"))
	got, err := ks.Retrieve(svc, "google")
	require.NoError(t, err)
	assert.Equal(t, "AIza-first", got)

	require.NoError(t, ks.Store(svc, "google", "AIza-rotated"))
	got, err = ks.Retrieve(svc, "google")
	require.NoError(t, err)
	assert.Equal(t, "AIza-rotated", got)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"google"}, keys, "rotating a key must not duplicate it in the index")

	require.NoError(t, ks.Delete(svc, "google"))
	_, err = ks.Retrieve(svc, "google")
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeSecretNotFound))
}

func TestKeyringStore_NotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	_, err := ks.Retrieve(svc, "openai")
	assert.True(t, vferr.HasCode(err, vferr.CodeSecretNotFound), "got: %v", err)

	err = ks.Delete(svc, "openai")
	assert.True(t, vferr.HasCode(err, vferr.CodeSecretNotFound), "got: %v", err)
}

func TestKeyringStore_ListTracksProviders(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, name := range []string{"google", "openai", "anthropic"} {
		require.NoError(t, ks.Store(svc, name, "key-"+name))
	}
	require.NoError(t, ks.Delete(svc, "openai"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"google", "anthropic"}, keys)
}

func TestKeyringStore_InvalidRefs(t *testing.T) {
	ks := secrets.NewKeyringStore()

	tests := []struct {
		name string
		call func() error
	}{
		{"store empty service", func() error { return ks.Store("", "google", "k") }},
		{"store empty key", func() error { return ks.Store(secrets.ServiceName, "", "k") }},
		{"retrieve empty service", func() error { _, err := ks.Retrieve("", "google"); return err }},
		{"delete empty key", func() error { return ks.Delete(secrets.ServiceName, "") }},
		{"list empty service", func() error { _, err := ks.List(""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, vferr.HasCode(err, vferr.CodeSecretInvalidInput), "got: %v", err)
		})
	}
}

func TestKeyringStore_EmptyValueIsStored(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	require.NoError(t, ks.Store(svc, "openrouter", ""))
	got, err := ks.Retrieve(svc, "openrouter")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyringStore_ServicesAreIsolated(t *testing.T) {
	ks := secrets.NewKeyringStore()
	a, b := testService(t)+"-a", testService(t)+"-b"

	require.NoError(t, ks.Store(a, "google", "value-a"))
	require.NoError(t, ks.Store(b, "google", "value-b"))

	got, err := ks.Retrieve(a, "google")
	require.NoError(t, err)
	assert.Equal(t, "value-a", got)

	got, err = ks.Retrieve(b, "google")
	require.NoError(t, err)
	assert.Equal(t, "value-b", got)

	keys, err := ks.List(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"google"}, keys)
}

func TestKeyringStore_ResolvesProviderKeyURI(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store(secrets.ServiceName, "openai", "sk-from-keyring"))
	t.Cleanup(func() { _ = ks.Delete(secrets.ServiceName, "openai") })

	got, err := secrets.ResolveKeyringURI(ks, secrets.ProviderKeyURI("openai"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", got)
}
