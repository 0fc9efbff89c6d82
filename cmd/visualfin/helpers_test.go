// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

var errSecretNotFound = vferr.New(vferr.CodeSecretNotFound, "secret not found")

// newTestRoot returns a root command writing to a buffer. HOME points at a
// temp dir so config bootstrap never touches the real one, and the global
// Viper is reset before and after the test.
func newTestRoot(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	return root, buf
}

// testSetupGateway starts a mock gateway, overrides defaultHTTPClient,
// and returns the server address (host:port).
func testSetupGateway(t *testing.T, handler http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	t.Cleanup(func() {
		defaultHTTPClient = old
		srv.Close()
	})
	return srv.URL[len("http://"):]
}

// jsonRoute serves body as JSON on path and 404 elsewhere. Each request
// is recorded in got when it is non-nil.
func jsonRoute(path string, body any, got *[]*http.Request) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			*got = append(*got, r)
		}
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
}

// mockSecretStore is an in-memory secrets.Store keyed by service and key.
type mockSecretStore struct {
	data     map[string]string
	storeErr error
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: make(map[string]string)}
}

func (m *mockSecretStore) Store(service, key, value string) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", errSecretNotFound
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service+"/"+key]; !ok {
		return errSecretNotFound
	}
	delete(m.data, service+"/"+key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	prefix := service + "/"
	var keys []string
	for k := range m.data {
		if name, ok := strings.CutPrefix(k, prefix); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

// useSecretStore installs store as the secretStoreFactory result for one test.
func useSecretStore(t *testing.T, store *mockSecretStore) {
	t.Helper()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = old })
}
