// Package ffprobe wraps ffprobe container inspection for the video bank.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"vjcap/internal/services"
)

var commandContext = exec.CommandContext

// Prober reports media durations.
type Prober interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

// Option configures the CLI prober.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffprobe command-line inspector.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI prober using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

type formatResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// DurationSeconds returns the container duration of path in seconds.
func (c *CLI) DurationSeconds(ctx context.Context, path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	cmd := commandContext(ctx, c.binary,
		"-v", "error", "-hide_banner",
		"-show_format", "-of", "json",
		"--", path)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, services.Wrap(services.ErrTimeout, "ffprobe", "inspect", path, ctx.Err())
		}
		return 0, services.Wrap(services.ErrTranscode, "ffprobe", "inspect", path, err)
	}

	var result formatResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, services.Wrap(services.ErrTranscode, "ffprobe", "parse", path, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil || duration < 0 {
		return 0, nil
	}
	return duration, nil
}
