package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeLimits()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SnapshotPath, err = expandPath(c.Paths.SnapshotPath); err != nil {
		return fmt.Errorf("paths.snapshot_path: %w", err)
	}
	if c.Paths.OutputPath, err = expandPath(c.Paths.OutputPath); err != nil {
		return fmt.Errorf("paths.output_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ClipCacheDir) == "" {
		c.Paths.ClipCacheDir = defaultClipCacheDir
	}
	if c.Paths.ClipCacheDir, err = expandPath(c.Paths.ClipCacheDir); err != nil {
		return fmt.Errorf("paths.clip_cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.VideoBank.Dir, err = expandPath(c.VideoBank.Dir); err != nil {
		return fmt.Errorf("video_bank.dir: %w", err)
	}
	if c.GifBank.Path, err = expandPath(c.GifBank.Path); err != nil {
		return fmt.Errorf("gif_bank.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	c.Giphy.APIKey = strings.TrimSpace(c.Giphy.APIKey)
	c.Giphy.BaseURL = strings.TrimRight(strings.TrimSpace(c.Giphy.BaseURL), "/")
	if c.Giphy.BaseURL == "" {
		c.Giphy.BaseURL = defaultGiphyBaseURL
	}
	if c.Giphy.TimeoutSeconds <= 0 {
		c.Giphy.TimeoutSeconds = defaultProviderTimeout
	}
	c.Google.APIKey = strings.TrimSpace(c.Google.APIKey)
	c.Google.EngineID = strings.TrimSpace(c.Google.EngineID)
	c.Google.BaseURL = strings.TrimRight(strings.TrimSpace(c.Google.BaseURL), "/")
	if c.Google.BaseURL == "" {
		c.Google.BaseURL = defaultGoogleBaseURL
	}
	if c.Google.TimeoutSeconds <= 0 {
		c.Google.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeLimits() {
	if c.Budget.HourlyCap <= 0 {
		c.Budget.HourlyCap = defaultBudgetHourlyCap
	}
	if c.Budget.WindowMinutes <= 0 {
		c.Budget.WindowMinutes = defaultBudgetWindowMin
	}
	if c.Dedup.PerArtistCap <= 0 {
		c.Dedup.PerArtistCap = defaultDedupPerArtistCap
	}
	if c.Rotation.Size <= 0 {
		c.Rotation.Size = defaultRotationSize
	}
	if c.Rotation.PoolSize <= 0 {
		c.Rotation.PoolSize = defaultPoolSize
	}
	if c.Prefetch.Workers <= 0 {
		c.Prefetch.Workers = defaultPrefetchWorkers
	}
	if c.Prefetch.MaxAttempts <= 0 {
		c.Prefetch.MaxAttempts = defaultPrefetchAttempts
	}
	if c.Prefetch.RetryBackoffSeconds <= 0 {
		c.Prefetch.RetryBackoffSeconds = defaultPrefetchBackoffSec
	}
	if c.VideoBank.ClipSeconds <= 0 {
		c.VideoBank.ClipSeconds = defaultClipSeconds
	}
	if c.VideoBank.FadeMillis <= 0 {
		c.VideoBank.FadeMillis = defaultFadeMillis
	}
	if c.Workflow.PollIntervalSeconds <= 0 {
		c.Workflow.PollIntervalSeconds = defaultPollInterval
	}
	if c.Workflow.ErrorRetryIntervalSecs <= 0 {
		c.Workflow.ErrorRetryIntervalSecs = defaultErrorRetryInterval
	}
	if c.Workflow.CleanupIntervalMinutes <= 0 {
		c.Workflow.CleanupIntervalMinutes = defaultCleanupInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
