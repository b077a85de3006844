package config

const (
	defaultOutputDir = "~/.local/share/jgl/output"
	defaultLogDir    = "~/.local/share/jgl/logs"
	defaultStateDir  = "~/.local/share/jgl/state"

	defaultLLMBaseURL        = "https://api.openai.com/v1"
	defaultLLMTimeoutSeconds = 300
	defaultLLMMaxRetries     = 3

	defaultScriptModel       = "o3"
	defaultScriptFallback    = "o3-mini"
	defaultPhoneticModel     = "o4-mini"
	defaultScriptMaxAttempts = 3

	defaultStoryboardModel   = "o3"
	defaultMinShots          = 45
	defaultMinShotSeconds    = 3.0
	defaultMaxShotSeconds    = 10.0
	defaultWordsPerMinute    = 155
	defaultMinScriptCoverage = 0.8

	defaultDailySearchLimit = 100
	defaultSearchQPS        = 1.0

	defaultImagesPerShot         = 10
	defaultMinImagesPerShot      = 3
	defaultMaxSearchCallsPerShot = 5
	defaultShotWorkers           = 3
	defaultDownloadWorkers       = 5
	defaultGlobalDownloadCap     = 10
	defaultMinImageWidth         = 640
	defaultMinImageHeight        = 360
	defaultMaxImageMB            = 20
	defaultDownloadTimeout       = 15
	defaultHeadTimeout           = 5

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxRetries:     defaultLLMMaxRetries,
		},
		Script: Script{
			Model:         defaultScriptModel,
			FallbackModel: defaultScriptFallback,
			PhoneticModel: defaultPhoneticModel,
			MaxAttempts:   defaultScriptMaxAttempts,
		},
		Storyboard: Storyboard{
			Model:          defaultStoryboardModel,
			MinShots:       defaultMinShots,
			MinShotSeconds: defaultMinShotSeconds,
			MaxShotSeconds: defaultMaxShotSeconds,
			WordsPerMinute: defaultWordsPerMinute,
			MinScriptCover: defaultMinScriptCoverage,
		},
		Search: Search{
			DailyLimit:       defaultDailySearchLimit,
			QueriesPerSecond: defaultSearchQPS,
		},
		Assets: Assets{
			ImagesPerShot:          defaultImagesPerShot,
			MinImagesPerShot:       defaultMinImagesPerShot,
			MaxSearchCallsPerShot:  defaultMaxSearchCallsPerShot,
			ShotWorkers:            defaultShotWorkers,
			DownloadWorkers:        defaultDownloadWorkers,
			GlobalDownloadCap:      defaultGlobalDownloadCap,
			MinWidth:               defaultMinImageWidth,
			MinHeight:              defaultMinImageHeight,
			MaxImageMB:             defaultMaxImageMB,
			DownloadTimeoutSeconds: defaultDownloadTimeout,
			HeadTimeoutSeconds:     defaultHeadTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
