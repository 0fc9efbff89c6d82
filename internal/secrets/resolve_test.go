// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func TestIsKeyringURI(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid URI", "keyring://visualfin/google", true},
		{"valid URI with dashes", "keyring://my-svc/my-key", true},
		{"env var reference", "${GEMINI_API_KEY}", false},
		{"literal value", "AIza-abc123", false},
		{"empty string", "", false},
		{"just scheme", "keyring://", true},
		{"other scheme", "vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, secrets.IsKeyringURI(tt.value))
		})
	}
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://visualfin/openai", "visualfin", "openai", false},
		{"slashes in key", "keyring://visualfin/path/to/key", "visualfin", "path/to/key", false},
		{"not a keyring URI", "vault://secret/key", "", "", true},
		{"missing key", "keyring://visualfin/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"missing both", "keyring://", "", "", true},
		{"no path", "keyring://visualfin", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, vferr.HasCode(err, vferr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestProviderKeyURI(t *testing.T) {
	uri := secrets.ProviderKeyURI("google")
	assert.Equal(t, "keyring://visualfin/google", uri)

	svc, key, err := secrets.ParseKeyringURI(uri)
	require.NoError(t, err)
	assert.Equal(t, secrets.ServiceName, svc)
	assert.Equal(t, "google", key)
}

func TestResolveKeyringURI(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("visualfin-resolve", "google", "resolved-secret"))

	t.Run("resolves keyring URI", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "keyring://visualfin-resolve/google")
		require.NoError(t, err)
		assert.Equal(t, "resolved-secret", val)
	})

	t.Run("passes through literal values", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "literal-value")
		require.NoError(t, err)
		assert.Equal(t, "literal-value", val)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://visualfin-resolve/nonexistent")
		require.Error(t, err)
		assert.True(t, vferr.IsNotFound(err))
		assert.Contains(t, err.Error(), "resolving keyring URI")
	})

	t.Run("malformed URI", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://bad")
		require.Error(t, err)
		assert.True(t, vferr.HasCode(err, vferr.CodeSecretInvalidInput))
	})
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("visualfin-viper", "google", "AIza-secret"))
	require.NoError(t, ks.Store("visualfin-viper", "openai", "sk-oai-secret"))

	v := viper.New()
	v.Set("providers.google.api_key", "keyring://visualfin-viper/google")
	v.Set("providers.openai.api_key", "keyring://visualfin-viper/openai")
	v.Set("networking.listen", "127.0.0.1:18790")
	v.Set("models.embedding", "google/text-embedding-004")

	require.NoError(t, secrets.ResolveViperSecrets(v, ks))

	assert.Equal(t, "AIza-secret", v.GetString("providers.google.api_key"))
	assert.Equal(t, "sk-oai-secret", v.GetString("providers.openai.api_key"))
	assert.Equal(t, "127.0.0.1:18790", v.GetString("networking.listen"))
	assert.Equal(t, "google/text-embedding-004", v.GetString("models.embedding"))
}

func TestResolveViperSecrets_MissingSecretReturnsError(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("visualfin-partial", "google", "AIza-secret"))

	v := viper.New()
	v.Set("providers.google.api_key", "keyring://visualfin-partial/google")
	v.Set("providers.anthropic.api_key", "keyring://visualfin-partial/anthropic")

	err := secrets.ResolveViperSecrets(v, ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving config secrets")
	assert.Contains(t, err.Error(), "providers.anthropic.api_key")
	assert.Contains(t, err.Error(), "keyring://visualfin-partial/anthropic")

	// Resolvable keys are still applied, failures keep the reference.
	assert.Equal(t, "AIza-secret", v.GetString("providers.google.api_key"))
	assert.Equal(t, "keyring://visualfin-partial/anthropic", v.GetString("providers.anthropic.api_key"))
}
