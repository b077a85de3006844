package testsupport

import (
	"testing"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/quota"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// MustOpenQuota opens the shared quota store for tests and registers cleanup.
func MustOpenQuota(t testing.TB, cfg *config.Config) *quota.Store {
	t.Helper()

	store, err := quota.Open(cfg.QuotaDBPath(), cfg.Search.DailyLimit)
	if err != nil {
		t.Fatalf("quota.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenWorkspace opens the actors workspace store for tests.
func MustOpenWorkspace(t testing.TB, cfg *config.Config) *workspace.Store {
	t.Helper()

	store, err := workspace.NewStore(cfg.ActorsDir(), nil)
	if err != nil {
		t.Fatalf("workspace.NewStore: %v", err)
	}
	return store
}
