package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vjcap/internal/services"
)

var commandContext = exec.CommandContext

// ClipRequest describes one sub-clip extraction.
type ClipRequest struct {
	Input    string
	Output   string
	Offset   time.Duration
	Duration time.Duration
	Fade     time.Duration
}

// Client defines transcoder behaviour.
type Client interface {
	Clip(ctx context.Context, req ClipRequest) error
	Version(ctx context.Context) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line transcoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Clip extracts a fixed-duration sub-clip with fade-in and fade-out applied.
func (c *CLI) Clip(ctx context.Context, req ClipRequest) error {
	if req.Input == "" {
		return errors.New("input path required")
	}
	if req.Output == "" {
		return errors.New("output path required")
	}
	if req.Duration <= 0 {
		return errors.New("clip duration must be positive")
	}

	fadeSecs := req.Fade.Seconds()
	durSecs := req.Duration.Seconds()
	filter := fmt.Sprintf("fade=t=in:st=0:d=%.3f,fade=t=out:st=%.3f:d=%.3f",
		fadeSecs, durSecs-fadeSecs, fadeSecs)

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-ss", formatSeconds(req.Offset),
		"-i", req.Input,
		"-t", formatSeconds(req.Duration),
		"-vf", filter,
		"-an",
		req.Output,
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "ffmpeg", "clip", req.Input, ctx.Err())
		}
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrTranscode, "ffmpeg", "clip", detail, err)
	}
	return nil
}

// Version reports the installed ffmpeg version line; used by preflight.
func (c *CLI) Version(ctx context.Context) (string, error) {
	cmd := commandContext(ctx, c.binary, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "ffmpeg", "version", "binary not runnable", err)
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
