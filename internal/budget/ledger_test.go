package budget

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestLedger(t *testing.T, cap int, now *time.Time) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	return NewLedger(path, cap, time.Hour, nil, WithClock(func() time.Time { return *now }))
}

func TestTryConsumeNeverExceedsCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 40, &now)

	total := 0
	for range 10 {
		total += ledger.TryConsume(7)
	}
	if total != 40 {
		t.Errorf("total granted = %d, want exactly cap 40", total)
	}
	if got := ledger.TryConsume(1); got != 0 {
		t.Errorf("exhausted ledger granted %d, want 0", got)
	}
}

func TestTryConsumePartialGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 10, &now)

	if got := ledger.TryConsume(8); got != 8 {
		t.Fatalf("first grant = %d, want 8", got)
	}
	if got := ledger.TryConsume(8); got != 2 {
		t.Errorf("second grant = %d, want remaining 2", got)
	}
}

func TestWindowResetsLazily(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 5, &now)

	if got := ledger.TryConsume(5); got != 5 {
		t.Fatalf("grant = %d, want 5", got)
	}
	if got := ledger.TryConsume(1); got != 0 {
		t.Fatalf("grant after exhaustion = %d, want 0", got)
	}

	// Window has fully elapsed; the next use resets it.
	now = now.Add(time.Hour + time.Minute)
	if got := ledger.TryConsume(3); got != 3 {
		t.Errorf("grant after window elapsed = %d, want 3", got)
	}
}

func TestWindowDoesNotResetEarly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 5, &now)

	ledger.TryConsume(5)
	now = now.Add(59 * time.Minute)
	if got := ledger.TryConsume(1); got != 0 {
		t.Errorf("grant inside window = %d, want 0", got)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	first := NewLedger(path, 40, time.Hour, nil, WithClock(clock))
	first.TryConsume(30)

	second := NewLedger(path, 40, time.Hour, nil, WithClock(clock))
	if got := second.TryConsume(40); got != 10 {
		t.Errorf("grant after restart = %d, want 10 (30 already spent)", got)
	}
}

func TestCorruptStateReinitializesOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(path, 40, time.Hour, nil, WithClock(func() time.Time { return now }))
	if got := ledger.TryConsume(40); got != 40 {
		t.Errorf("corrupt state should fail open with a full window, granted %d", got)
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 40, &now)
	ledger.TryConsume(15)

	remaining, windowStart := ledger.Remaining()
	if remaining != 25 {
		t.Errorf("remaining = %d, want 25", remaining)
	}
	if !windowStart.Equal(now) {
		t.Errorf("window start = %v, want %v", windowStart, now)
	}
}

func TestConcurrentConsumersStayWithinCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, 100, &now)

	var wg sync.WaitGroup
	grants := make([]int, 20)
	for i := range grants {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			grants[slot] = ledger.TryConsume(9)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, g := range grants {
		total += g
	}
	if total > 100 {
		t.Errorf("concurrent grants total %d, exceeds cap 100", total)
	}
}
