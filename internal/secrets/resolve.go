// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", vferr.Errorf(vferr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", vferr.Errorf(vferr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return service, key, nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Any other value is returned unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", vferr.Wrapf(err, vferr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string in v with the secret
// it names. Run it after the config is read and before it is decoded.
// Values that fail to resolve are left in place and reported together.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, vferr.Wrapf(err, vferr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}

		v.Set(key, resolved)
	}

	if len(errs) > 0 {
		return vferr.Wrapf(errors.Join(errs...), vferr.CodeSecretResolveFailure, "resolving config secrets")
	}
	return nil
}
