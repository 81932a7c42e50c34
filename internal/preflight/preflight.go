package preflight

import (
	"context"

	"vjcap/internal/config"
	"vjcap/internal/services/ffmpeg"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable checks for the given config. Checks for
// disabled features are skipped.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Clip cache", cfg.Paths.ClipCacheDir))
	results = append(results, CheckDirectoryAccess("Video bank", cfg.VideoBank.Dir))
	results = append(results, CheckFreeSpace("Clip cache space", cfg.Paths.ClipCacheDir, uint64(cfg.Prefetch.MinFreeGiB)<<30))
	results = append(results, CheckFFmpeg(ctx, ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))))

	if cfg.GiphyConfigured() {
		results = append(results, CheckEndpoint(ctx, "Giphy API", cfg.Giphy.BaseURL))
	}
	if cfg.GoogleConfigured() {
		results = append(results, CheckEndpoint(ctx, "Google Image API", cfg.Google.BaseURL))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
