package testsupport

import (
	"testing"

	"vjcap/internal/config"
	"vjcap/internal/prefetch"
)

// MustOpenStore opens a prefetch.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *prefetch.Store {
	t.Helper()

	store, err := prefetch.OpenStore(cfg)
	if err != nil {
		t.Fatalf("prefetch.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
