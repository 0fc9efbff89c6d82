// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package secrets keeps provider API keys out of the config file by
// storing them in the OS keyring and resolving keyring:// references.
package secrets

// ServiceName is the keyring service under which VisualFin stores keys.
const ServiceName = "visualfin"

// Store provides secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// A missing key carries CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// A missing key carries CodeSecretNotFound.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// ProviderKeyURI returns the keyring reference for a provider's API key.
func ProviderKeyURI(provider string) string {
	return keyringScheme + ServiceName + "/" + provider
}
