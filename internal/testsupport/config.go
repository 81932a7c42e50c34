package testsupport

import (
	"path/filepath"
	"testing"

	"vjcap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SnapshotPath = filepath.Join(base, "decks.json")
	cfg.Paths.OutputPath = filepath.Join(base, "enriched.json")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.ClipCacheDir = filepath.Join(base, "clips")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.VideoBank.Dir = filepath.Join(base, "video_bank")
	cfg.GifBank.Path = filepath.Join(base, "gif_bank.json")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithGiphyKey sets the primary provider API key on the test config.
func WithGiphyKey(key string) ConfigOption {
	return func(c *config.Config) {
		c.Giphy.APIKey = key
	}
}

// WithGoogle enables the secondary provider with test credentials.
func WithGoogle(key, engineID string) ConfigOption {
	return func(c *config.Config) {
		c.Google.Enabled = true
		c.Google.APIKey = key
		c.Google.EngineID = engineID
	}
}
