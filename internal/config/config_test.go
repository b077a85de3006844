package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GOOGLE_SEARCH_CX", "")

	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Script.Model != "o3" || cfg.Script.PhoneticModel != "o4-mini" {
		t.Fatalf("unexpected script defaults: %+v", cfg.Script)
	}
	if cfg.Storyboard.MinShots != 45 {
		t.Fatalf("min_shots = %d, want 45", cfg.Storyboard.MinShots)
	}
	if cfg.Search.DailyLimit != 100 {
		t.Fatalf("daily_limit = %d, want 100", cfg.Search.DailyLimit)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
output_dir = "` + dir + `/out"
state_dir = "` + dir + `/state"

[script]
model = "o3-pro"
max_attempts = 5

[storyboard]
min_shots = 50

[assets]
images_per_shot = 8
min_images_per_shot = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Script.Model != "o3-pro" || cfg.Script.MaxAttempts != 5 {
		t.Fatalf("script overrides not applied: %+v", cfg.Script)
	}
	if cfg.Storyboard.MinShots != 50 {
		t.Fatalf("min_shots = %d", cfg.Storyboard.MinShots)
	}
	if cfg.Assets.ImagesPerShot != 8 || cfg.Assets.MinImagesPerShot != 2 {
		t.Fatalf("asset overrides not applied: %+v", cfg.Assets)
	}
	// Unset fields still fall back to defaults.
	if cfg.Storyboard.WordsPerMinute != 155 {
		t.Fatalf("words_per_minute = %d, want default 155", cfg.Storyboard.WordsPerMinute)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.HasPrefix(cfg.Paths.OutputDir, home) {
		t.Fatalf("output_dir %q not expanded under %q", cfg.Paths.OutputDir, home)
	}
	if strings.Contains(cfg.Paths.OutputDir, "~") {
		t.Fatalf("output_dir %q still contains tilde", cfg.Paths.OutputDir)
	}
}

func TestEnvironmentKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-test")
	t.Setenv("GOOGLE_SEARCH_CX", "cx-test")

	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("llm api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Search.APIKey != "g-test" || cfg.Search.EngineID != "cx-test" {
		t.Fatalf("search credentials = %+v", cfg.Search)
	}
}

func TestConfigFileWinsOverEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := Default()
	cfg.LLM.APIKey = "sk-file"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.LLM.APIKey != "sk-file" {
		t.Fatalf("llm api key = %q, want file value", cfg.LLM.APIKey)
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Storyboard.MinShotSeconds = 12
	cfg.Storyboard.MaxShotSeconds = 6
	cfg.Storyboard.WordsPerMinute = 20
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("issues = %v, want 3", verr.Issues)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
}

func TestRequireSearchCredentials(t *testing.T) {
	cfg := Default()
	err := cfg.RequireSearchCredentials()
	if err == nil {
		t.Fatal("expected error with no credentials")
	}
	if !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Fatalf("error %q should name the env var", err)
	}

	cfg.Search.APIKey = "k"
	cfg.Search.EngineID = "cx"
	if err := cfg.RequireSearchCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuotaDBPath(t *testing.T) {
	cfg := Default()
	cfg.Paths.StateDir = "/tmp/jgl-state"
	if got := cfg.QuotaDBPath(); got != "/tmp/jgl-state/quota.db" {
		t.Fatalf("QuotaDBPath = %q", got)
	}
	cfg.Paths.OutputDir = "/tmp/jgl-out"
	if got := cfg.ActorsDir(); got != "/tmp/jgl-out/actors" {
		t.Fatalf("ActorsDir = %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[storyboard]") {
		t.Fatal("sample missing storyboard section")
	}
	// The sample must parse back through Load.
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("Load(sample): %v", err)
	}
}
