package budget

import (
	"log/slog"
	"sync"
	"time"

	"vjcap/internal/logging"
	"vjcap/internal/outputs"
)

// state is the persisted ledger document.
type state struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
	Cap         int       `json:"cap"`
}

// Ledger admits calls against a rolling-window quota. Safe for concurrent
// use; the pool builder and the prefetch scheduler share one instance.
type Ledger struct {
	path   string
	logger *slog.Logger
	cap    int
	window time.Duration
	now    func() time.Time

	mu sync.Mutex
	st state
}

// Option configures optional ledger behavior.
type Option func(*Ledger)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger loads or initializes the ledger at path. Missing or corrupt
// state reinitializes to a fully-available window: the budget exists to
// prevent abuse, not to do correctness-critical accounting.
func NewLedger(path string, cap int, window time.Duration, logger *slog.Logger, opts ...Option) *Ledger {
	logger = logging.NewComponentLogger(logger, "budget")

	l := &Ledger{
		path:   path,
		logger: logger,
		cap:    cap,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := outputs.ReadJSON(path, &l.st); err != nil {
		if err != outputs.ErrNotExist {
			logging.WarnWithContext(logger, "ledger state unreadable, starting fresh", "budget_state_corrupt",
				logging.Error(err),
				logging.String(logging.FieldImpact, "quota history for the current window is lost"))
		}
		l.st = state{WindowStart: l.now(), Count: 0, Cap: cap}
	}
	// Config cap wins over whatever was persisted.
	l.st.Cap = cap
	if l.st.Count > cap {
		l.st.Count = cap
	}
	return l
}

// TryConsume grants up to n calls against the current window without
// exceeding the cap. It returns the granted amount, possibly zero. The
// window resets lazily once it has fully elapsed; there is no timer.
func (l *Ledger) TryConsume(n int) int {
	if n <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked()

	remaining := l.cap - l.st.Count
	if remaining <= 0 {
		return 0
	}
	granted := n
	if granted > remaining {
		granted = remaining
	}
	l.st.Count += granted
	l.persistLocked()

	l.logger.Debug("consumed quota",
		logging.Int("granted", granted),
		logging.Int("used", l.st.Count),
		logging.Int("cap", l.cap))
	return granted
}

// Remaining reports the unconsumed quota and the current window start.
func (l *Ledger) Remaining() (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked()
	remaining := l.cap - l.st.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, l.st.WindowStart
}

// Cap returns the configured window cap.
func (l *Ledger) Cap() int {
	return l.cap
}

func (l *Ledger) rollWindowLocked() {
	now := l.now()
	if now.Sub(l.st.WindowStart) >= l.window {
		if l.st.Count > 0 {
			l.logger.Info("window reset",
				logging.Int("spent", l.st.Count),
				logging.Int("cap", l.cap))
		}
		l.st = state{WindowStart: now, Count: 0, Cap: l.cap}
		l.persistLocked()
	}
}

func (l *Ledger) persistLocked() {
	if l.path == "" {
		return
	}
	if err := outputs.WriteJSONAtomic(l.path, l.st); err != nil {
		logging.WarnWithContext(l.logger, "persist ledger failed", "budget_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a restart may over-grant this window"))
	}
}
