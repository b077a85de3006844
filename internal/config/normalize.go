package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeScript()
	c.normalizeStoryboard()
	c.normalizeSearch()
	c.normalizeAssets()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = defaultLLMMaxRetries
	}
}

func (c *Config) normalizeScript() {
	c.Script.Model = strings.TrimSpace(c.Script.Model)
	if c.Script.Model == "" {
		c.Script.Model = defaultScriptModel
	}
	// fallback_model may be empty to disable the fallback chain.
	c.Script.FallbackModel = strings.TrimSpace(c.Script.FallbackModel)
	c.Script.PhoneticModel = strings.TrimSpace(c.Script.PhoneticModel)
	if c.Script.PhoneticModel == "" {
		c.Script.PhoneticModel = defaultPhoneticModel
	}
	if c.Script.MaxAttempts <= 0 {
		c.Script.MaxAttempts = defaultScriptMaxAttempts
	}
}

func (c *Config) normalizeStoryboard() {
	c.Storyboard.Model = strings.TrimSpace(c.Storyboard.Model)
	if c.Storyboard.Model == "" {
		c.Storyboard.Model = defaultStoryboardModel
	}
	if c.Storyboard.MinShots <= 0 {
		c.Storyboard.MinShots = defaultMinShots
	}
	if c.Storyboard.MinShotSeconds <= 0 {
		c.Storyboard.MinShotSeconds = defaultMinShotSeconds
	}
	if c.Storyboard.MaxShotSeconds <= 0 {
		c.Storyboard.MaxShotSeconds = defaultMaxShotSeconds
	}
	if c.Storyboard.WordsPerMinute <= 0 {
		c.Storyboard.WordsPerMinute = defaultWordsPerMinute
	}
	if c.Storyboard.MinScriptCover <= 0 || c.Storyboard.MinScriptCover > 1 {
		c.Storyboard.MinScriptCover = defaultMinScriptCoverage
	}
}

func (c *Config) normalizeSearch() {
	c.Search.APIKey = strings.TrimSpace(c.Search.APIKey)
	if c.Search.APIKey == "" {
		if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Search.APIKey = strings.TrimSpace(value)
		}
	}
	c.Search.EngineID = strings.TrimSpace(c.Search.EngineID)
	if c.Search.EngineID == "" {
		if value, ok := os.LookupEnv("GOOGLE_SEARCH_CX"); ok {
			c.Search.EngineID = strings.TrimSpace(value)
		}
	}
	if c.Search.DailyLimit <= 0 {
		c.Search.DailyLimit = defaultDailySearchLimit
	}
	if c.Search.QueriesPerSecond <= 0 {
		c.Search.QueriesPerSecond = defaultSearchQPS
	}
}

func (c *Config) normalizeAssets() {
	if c.Assets.ImagesPerShot <= 0 {
		c.Assets.ImagesPerShot = defaultImagesPerShot
	}
	if c.Assets.MinImagesPerShot <= 0 {
		c.Assets.MinImagesPerShot = defaultMinImagesPerShot
	}
	if c.Assets.MinImagesPerShot > c.Assets.ImagesPerShot {
		c.Assets.MinImagesPerShot = c.Assets.ImagesPerShot
	}
	if c.Assets.MaxSearchCallsPerShot <= 0 {
		c.Assets.MaxSearchCallsPerShot = defaultMaxSearchCallsPerShot
	}
	if c.Assets.ShotWorkers <= 0 {
		c.Assets.ShotWorkers = defaultShotWorkers
	}
	if c.Assets.DownloadWorkers <= 0 {
		c.Assets.DownloadWorkers = defaultDownloadWorkers
	}
	if c.Assets.GlobalDownloadCap <= 0 {
		c.Assets.GlobalDownloadCap = defaultGlobalDownloadCap
	}
	if c.Assets.MinWidth <= 0 {
		c.Assets.MinWidth = defaultMinImageWidth
	}
	if c.Assets.MinHeight <= 0 {
		c.Assets.MinHeight = defaultMinImageHeight
	}
	if c.Assets.MaxImageMB <= 0 {
		c.Assets.MaxImageMB = defaultMaxImageMB
	}
	if c.Assets.DownloadTimeoutSeconds <= 0 {
		c.Assets.DownloadTimeoutSeconds = defaultDownloadTimeout
	}
	if c.Assets.HeadTimeoutSeconds <= 0 {
		c.Assets.HeadTimeoutSeconds = defaultHeadTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
