// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials default to placeholder values so validation passes without
// touching real services.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.LLM.APIKey = "test-key"
	cfg.Search.APIKey = "test-key"
	cfg.Search.EngineID = "test-cx"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithDailySearchLimit overrides the search quota on the test config.
func WithDailySearchLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Search.DailyLimit = limit
	}
}

// WithoutLLMCredentials clears the text-generation key to exercise the
// credential-check paths.
func WithoutLLMCredentials() ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.APIKey = ""
	}
}
