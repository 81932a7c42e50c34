package ffprobe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func stubProbeOutput(t *testing.T, payload string) *[]string {
	t.Helper()

	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"HELPER_PAYLOAD="+payload)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &capturedArgs
}

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffprobe"))
	if cli.binary != "/opt/ffprobe" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestDurationSeconds(t *testing.T) {
	args := stubProbeOutput(t, `{"format":{"duration":"63.412000"}}`)

	cli := NewCLI()
	dur, err := cli.DurationSeconds(context.Background(), "/bank/dance_01.mp4")
	if err != nil {
		t.Fatalf("DurationSeconds: %v", err)
	}
	if dur != 63.412 {
		t.Errorf("duration = %v", dur)
	}

	joined := strings.Join(*args, " ")
	if !strings.Contains(joined, "-show_format") || !strings.Contains(joined, "/bank/dance_01.mp4") {
		t.Errorf("unexpected args: %s", joined)
	}
}

func TestDurationSecondsMissingField(t *testing.T) {
	stubProbeOutput(t, `{"format":{}}`)

	cli := NewCLI()
	dur, err := cli.DurationSeconds(context.Background(), "/bank/dance_01.mp4")
	if err != nil {
		t.Fatalf("DurationSeconds: %v", err)
	}
	if dur != 0 {
		t.Errorf("duration = %v, want 0 when ffprobe omits it", dur)
	}
}

func TestDurationSecondsEmptyPath(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.DurationSeconds(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("HELPER_PAYLOAD"))
	os.Exit(0)
}
