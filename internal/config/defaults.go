package config

const (
	defaultSnapshotPath       = "~/.local/share/vjcap/decks.json"
	defaultOutputPath         = "~/.local/share/vjcap/enriched.json"
	defaultStateDir           = "~/.local/share/vjcap/state"
	defaultClipCacheDir       = "~/.cache/vjcap/clips"
	defaultLogDir             = "~/.local/share/vjcap/logs"
	defaultAPIBind            = "127.0.0.1:7523"
	defaultGiphyBaseURL       = "https://api.giphy.com/v1/gifs"
	defaultGiphyRating        = "pg-13"
	defaultGoogleBaseURL      = "https://www.googleapis.com/customsearch/v1"
	defaultProviderTimeout    = 10
	defaultVideoBankDir       = "~/.local/share/vjcap/video_bank"
	defaultClipSeconds        = 1.0
	defaultFadeMillis         = 250
	defaultGifBankPath        = "~/.local/share/vjcap/gif_bank/gif_bank.json"
	defaultBudgetHourlyCap    = 40
	defaultBudgetWindowMin    = 60
	defaultDedupPerArtistCap  = 200
	defaultRotationSize       = 15
	defaultPoolSize           = 25
	defaultPrefetchWorkers    = 2
	defaultPrefetchAttempts   = 3
	defaultPrefetchBackoffSec = 5
	defaultPrefetchMinFree    = 1
	defaultPollInterval       = 2
	defaultErrorRetryInterval = 10
	defaultCleanupInterval    = 30
	defaultClipCacheMaxGiB    = 2
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SnapshotPath: defaultSnapshotPath,
			OutputPath:   defaultOutputPath,
			StateDir:     defaultStateDir,
			ClipCacheDir: defaultClipCacheDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Giphy: Giphy{
			BaseURL:        defaultGiphyBaseURL,
			Rating:         defaultGiphyRating,
			TimeoutSeconds: defaultProviderTimeout,
		},
		Google: Google{
			BaseURL:        defaultGoogleBaseURL,
			TimeoutSeconds: defaultProviderTimeout,
		},
		VideoBank: VideoBank{
			Dir:         defaultVideoBankDir,
			ClipSeconds: defaultClipSeconds,
			FadeMillis:  defaultFadeMillis,
		},
		GifBank: GifBank{
			Path: defaultGifBankPath,
		},
		Budget: Budget{
			HourlyCap:     defaultBudgetHourlyCap,
			WindowMinutes: defaultBudgetWindowMin,
		},
		Dedup: Dedup{
			PerArtistCap: defaultDedupPerArtistCap,
		},
		Rotation: Rotation{
			Size:     defaultRotationSize,
			PoolSize: defaultPoolSize,
		},
		Prefetch: Prefetch{
			Workers:             defaultPrefetchWorkers,
			MaxAttempts:         defaultPrefetchAttempts,
			RetryBackoffSeconds: defaultPrefetchBackoffSec,
			MinFreeGiB:          defaultPrefetchMinFree,
		},
		Workflow: Workflow{
			PollIntervalSeconds:    defaultPollInterval,
			ErrorRetryIntervalSecs: defaultErrorRetryInterval,
			CleanupIntervalMinutes: defaultCleanupInterval,
			ClipCacheMaxGiB:        defaultClipCacheMaxGiB,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Budget:         true,
			Providers:      true,
			Prefetch:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
