package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// LLM contains connection settings for the text-generation service.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// Script contains settings for the script + phonetic generation step.
type Script struct {
	Model         string `toml:"model"`
	FallbackModel string `toml:"fallback_model"`
	PhoneticModel string `toml:"phonetic_model"`
	MaxAttempts   int    `toml:"max_attempts"`
}

// Storyboard contains settings for shot decomposition and the music brief.
type Storyboard struct {
	Model          string  `toml:"model"`
	MinShots       int     `toml:"min_shots"`
	MinShotSeconds float64 `toml:"min_shot_seconds"`
	MaxShotSeconds float64 `toml:"max_shot_seconds"`
	WordsPerMinute int     `toml:"words_per_minute"`
	MinScriptCover float64 `toml:"min_script_coverage"`
}

// Search contains image-search service settings and the caller-enforced quota.
type Search struct {
	APIKey           string  `toml:"api_key"`
	EngineID         string  `toml:"engine_id"`
	DailyLimit       int     `toml:"daily_limit"`
	QueriesPerSecond float64 `toml:"queries_per_second"`
}

// Assets contains settings for per-shot image acquisition.
type Assets struct {
	ImagesPerShot    int `toml:"images_per_shot"`
	MinImagesPerShot int `toml:"min_images_per_shot"`
	// MaxSearchCallsPerShot bounds search pages per shot across the
	// workspace lifetime, not per run. The per-shot call count persists in
	// the image metadata and doubles as the page offset, so a resumed run
	// continues from the next unseen page instead of re-buying pages it
	// already paid quota for.
	MaxSearchCallsPerShot  int `toml:"max_search_calls_per_shot"`
	ShotWorkers            int `toml:"shot_workers"`
	DownloadWorkers        int `toml:"download_workers"`
	GlobalDownloadCap      int `toml:"global_download_cap"`
	MinWidth               int `toml:"min_width"`
	MinHeight              int `toml:"min_height"`
	MaxImageMB             int `toml:"max_image_mb"`
	DownloadTimeoutSeconds int `toml:"download_timeout_seconds"`
	HeadTimeoutSeconds     int `toml:"head_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format      string `toml:"format"`
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, logs, and shared state (quota database)
//   - LLM: text-generation service connection
//   - Script: script + phonetic step models and retry budget
//   - Storyboard: shot decomposition bounds and narration pacing
//   - Search: image-search credentials and daily quota
//   - Assets: per-shot acquisition targets, workers, and download limits
//   - Notifications: optional ntfy push notifications
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Script        Script        `toml:"script"`
	Storyboard    Storyboard    `toml:"storyboard"`
	Search        Search        `toml:"search"`
	Assets        Assets        `toml:"assets"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jgl/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jgl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ActorsDir returns the directory that holds one workspace per entity.
func (c *Config) ActorsDir() string {
	return filepath.Join(c.Paths.OutputDir, "actors")
}

// QuotaDBPath returns the path of the shared quota/blacklist database.
func (c *Config) QuotaDBPath() string {
	return filepath.Join(c.Paths.StateDir, "quota.db")
}

// EnsureDirectories creates the directories required for a pipeline run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.ActorsDir(), c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
