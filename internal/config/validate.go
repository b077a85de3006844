package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError aggregates configuration problems so callers can report
// everything wrong in one pass instead of fixing fields one at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid configuration"
	}
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

// Validate checks the configuration for structural problems. Missing API keys
// are not validation errors here; commands that need them check at call time
// so read-only commands keep working without credentials.
func (c *Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		issues = append(issues, "paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		issues = append(issues, "paths.state_dir must be set")
	}

	if c.LLM.TimeoutSeconds <= 0 {
		issues = append(issues, "llm.timeout_seconds must be positive")
	}
	if c.Script.MaxAttempts < 1 {
		issues = append(issues, "script.max_attempts must be at least 1")
	}
	if c.Script.FallbackModel == c.Script.Model && c.Script.FallbackModel != "" {
		issues = append(issues, "script.fallback_model must differ from script.model")
	}

	if c.Storyboard.MinShots < 1 {
		issues = append(issues, "storyboard.min_shots must be at least 1")
	}
	if c.Storyboard.MinShotSeconds <= 0 {
		issues = append(issues, "storyboard.min_shot_seconds must be positive")
	}
	if c.Storyboard.MaxShotSeconds < c.Storyboard.MinShotSeconds {
		issues = append(issues, fmt.Sprintf(
			"storyboard.max_shot_seconds (%.1f) must be >= min_shot_seconds (%.1f)",
			c.Storyboard.MaxShotSeconds, c.Storyboard.MinShotSeconds))
	}
	if c.Storyboard.WordsPerMinute < 60 || c.Storyboard.WordsPerMinute > 300 {
		issues = append(issues, "storyboard.words_per_minute must be between 60 and 300")
	}
	if c.Storyboard.MinScriptCover <= 0 || c.Storyboard.MinScriptCover > 1 {
		issues = append(issues, "storyboard.min_script_coverage must be in (0, 1]")
	}

	if c.Search.DailyLimit < 1 {
		issues = append(issues, "search.daily_limit must be at least 1")
	}
	if c.Search.QueriesPerSecond <= 0 {
		issues = append(issues, "search.queries_per_second must be positive")
	}

	if c.Assets.MinImagesPerShot > c.Assets.ImagesPerShot {
		issues = append(issues, fmt.Sprintf(
			"assets.min_images_per_shot (%d) must be <= images_per_shot (%d)",
			c.Assets.MinImagesPerShot, c.Assets.ImagesPerShot))
	}
	if c.Assets.MaxSearchCallsPerShot < 1 {
		issues = append(issues, "assets.max_search_calls_per_shot must be at least 1")
	}
	if c.Assets.ShotWorkers < 1 || c.Assets.DownloadWorkers < 1 {
		issues = append(issues, "assets worker counts must be at least 1")
	}
	if c.Assets.GlobalDownloadCap < c.Assets.DownloadWorkers {
		issues = append(issues, fmt.Sprintf(
			"assets.global_download_cap (%d) must be >= download_workers (%d)",
			c.Assets.GlobalDownloadCap, c.Assets.DownloadWorkers))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// RequireLLMCredentials reports whether the text-generation service can be
// called with the current configuration.
func (c *Config) RequireLLMCredentials() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is not set (set OPENAI_API_KEY or llm.api_key)")
	}
	return nil
}

// RequireSearchCredentials reports whether the image-search service can be
// called with the current configuration.
func (c *Config) RequireSearchCredentials() error {
	var missing []string
	if c.Search.APIKey == "" {
		missing = append(missing, "search.api_key (GOOGLE_API_KEY)")
	}
	if c.Search.EngineID == "" {
		missing = append(missing, "search.engine_id (GOOGLE_SEARCH_CX)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing search credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}
