package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations and the API bind address.
type Paths struct {
	SnapshotPath string `toml:"snapshot_path"`
	OutputPath   string `toml:"output_path"`
	StateDir     string `toml:"state_dir"`
	ClipCacheDir string `toml:"clip_cache_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Giphy contains configuration for the primary GIF provider.
type Giphy struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Rating         string `toml:"rating"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Google contains configuration for the secondary image-search provider.
type Google struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	EngineID       string `toml:"engine_id"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VideoBank contains configuration for the offline MP4 bank and clipping.
type VideoBank struct {
	Dir          string  `toml:"dir"`
	ClipSeconds  float64 `toml:"clip_seconds"`
	FadeMillis   int     `toml:"fade_millis"`
	FFmpegBinary string  `toml:"ffmpeg_binary"`
}

// GifBank contains configuration for the curated offline GIF bank.
type GifBank struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Budget contains the primary-provider quota settings.
type Budget struct {
	HourlyCap     int `toml:"hourly_cap"`
	WindowMinutes int `toml:"window_minutes"`
}

// Dedup contains per-artist media history settings.
type Dedup struct {
	PerArtistCap int `toml:"per_artist_cap"`
}

// Rotation contains pool and rotation sizing.
type Rotation struct {
	Size     int `toml:"size"`
	PoolSize int `toml:"pool_size"`
}

// Prefetch contains background clip-warming settings.
type Prefetch struct {
	Workers             int `toml:"workers"`
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	MinFreeGiB          int `toml:"min_free_gib"`
}

// Workflow contains daemon timing and retention intervals.
type Workflow struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	ErrorRetryIntervalSecs int `toml:"error_retry_interval_seconds"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
	ClipCacheMaxGiB        int `toml:"clip_cache_max_gib"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Budget         bool   `toml:"budget"`
	Providers      bool   `toml:"providers"`
	Prefetch       bool   `toml:"prefetch"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vjcap.
//
// Configuration sections by subsystem:
//   - Paths: snapshot input, enriched output, state and cache directories
//   - Giphy: primary GIF provider credentials and timeouts
//   - Google: optional secondary image-search provider
//   - VideoBank: offline MP4 bank and ffmpeg clipping parameters
//   - GifBank: curated offline GIF bank fallback
//   - Budget: rolling-window quota for the primary provider
//   - Dedup: per-artist shown-media history
//   - Rotation: on-screen rotation and candidate pool sizing
//   - Prefetch: background clip warming workers and retries
//   - Workflow: polling cadence and cache retention
//   - Notifications: ntfy push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Giphy         Giphy         `toml:"giphy"`
	Google        Google        `toml:"google"`
	VideoBank     VideoBank     `toml:"video_bank"`
	GifBank       GifBank       `toml:"gif_bank"`
	Budget        Budget        `toml:"budget"`
	Dedup         Dedup         `toml:"dedup"`
	Rotation      Rotation      `toml:"rotation"`
	Prefetch      Prefetch      `toml:"prefetch"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vjcap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. Secrets may also arrive through
// the environment (optionally via a project-local .env file), which takes
// precedence over the TOML values.
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

	// Best-effort .env overlay so API keys can stay out of the TOML file.
	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("VJCAP_GIPHY_API_KEY")); v != "" {
		c.Giphy.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VJCAP_GOOGLE_API_KEY")); v != "" {
		c.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VJCAP_GOOGLE_ENGINE_ID")); v != "" {
		c.Google.EngineID = v
	}
	if v := strings.TrimSpace(os.Getenv("VJCAP_NTFY_TOPIC")); v != "" {
		c.Notifications.NtfyTopic = v
	}
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

	projectPath, err := filepath.Abs("vjcap.toml")
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

// GiphyConfigured reports whether the primary provider has credentials.
func (c *Config) GiphyConfigured() bool {
	return strings.TrimSpace(c.Giphy.APIKey) != ""
}

// GoogleConfigured reports whether the secondary provider is usable.
func (c *Config) GoogleConfigured() bool {
	return c.Google.Enabled &&
		strings.TrimSpace(c.Google.APIKey) != "" &&
		strings.TrimSpace(c.Google.EngineID) != ""
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.ClipCacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for clipping.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.VideoBank.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
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
