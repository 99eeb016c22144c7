package testsupport

import (
	"context"
	"testing"

	"tableread/internal/casting"
	"tableread/internal/config"
	"tableread/internal/docstore"
)

// MustOpenStore opens a docstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	store, err := docstore.Open(cfg)
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a session for tests from a screenplay fixture on disk.
func NewSession(t testing.TB, store *docstore.Store, title, screenplayPath string) *casting.Session {
	t.Helper()

	session, err := store.CreateSession(context.Background(), title, screenplayPath)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
