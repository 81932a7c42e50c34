package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vjcap/internal/budget"
	"vjcap/internal/config"
	"vjcap/internal/dedup"
	"vjcap/internal/enrich"
	"vjcap/internal/gifbank"
	"vjcap/internal/logging"
	"vjcap/internal/metrics"
	"vjcap/internal/notifications"
	"vjcap/internal/outputs"
	"vjcap/internal/pool"
	"vjcap/internal/prefetch"
	"vjcap/internal/preflight"
	"vjcap/internal/services/ffmpeg"
	"vjcap/internal/services/gimage"
	"vjcap/internal/services/giphy"
	"vjcap/internal/videobank"
)

// Daemon wires the enrichment pipeline together and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	metrics  *metrics.Metrics

	ledger    *budget.Ledger
	history   *dedup.History
	store     *prefetch.Store
	scheduler *prefetch.Scheduler
	orch      *enrich.Orchestrator
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	startedAt time.Time
	running   atomic.Bool
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool                    `json:"running"`
	UptimeSeconds   int64                   `json:"uptime_seconds"`
	Passes          int64                   `json:"passes"`
	ActiveDeck      string                  `json:"active_deck,omitempty"`
	BudgetRemaining int                     `json:"budget_remaining"`
	BudgetCap       int                     `json:"budget_cap"`
	BudgetResetAt   time.Time               `json:"budget_reset_at"`
	Prefetch        map[prefetch.Status]int `json:"prefetch,omitempty"`
	SnapshotPath    string                  `json:"snapshot_path"`
	OutputPath      string                  `json:"output_path"`
	LockFilePath    string                  `json:"lock_file_path"`
}

// New constructs a daemon with all pipeline dependencies initialized.
// The prefetch journal is opened here; callers must Close the daemon.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	met := metrics.New()
	notifier := notifications.NewService(cfg)

	ledger := budget.NewLedger(
		filepath.Join(cfg.Paths.StateDir, "budget.json"),
		cfg.Budget.HourlyCap,
		time.Duration(cfg.Budget.WindowMinutes)*time.Minute,
		logging.NewComponentLogger(logger, "budget"),
	)
	history := dedup.NewHistory(
		filepath.Join(cfg.Paths.StateDir, "history.json"),
		cfg.Dedup.PerArtistCap,
		logging.NewComponentLogger(logger, "dedup"),
	)
	videos := videobank.NewBank(cfg.VideoBank.Dir, logging.NewComponentLogger(logger, "videobank"))

	var gifs pool.GifFallback
	if cfg.GifBank.Enabled {
		gifs = gifbank.NewBank(cfg.GifBank.Path, logging.NewComponentLogger(logger, "gifbank"))
	}

	var primary pool.Searcher
	if cfg.GiphyConfigured() {
		primary = newInstrumentedSearcher("giphy", giphy.NewClient(cfg), met, notifier,
			logging.NewComponentLogger(logger, "giphy"))
	}
	var secondary pool.Searcher
	if cfg.GoogleConfigured() {
		secondary = newInstrumentedSearcher("google", gimage.NewClient(cfg), met, notifier,
			logging.NewComponentLogger(logger, "gimage"))
	}

	store, err := prefetch.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open prefetch journal: %w", err)
	}

	clipper := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	scheduler := prefetch.NewScheduler(cfg, store, videos, clipper, notifier,
		logging.NewComponentLogger(logger, "prefetch"))

	builder := pool.NewBuilder(primary, secondary, videos, gifs, ledger, history,
		cfg.Rotation.Size/3, cfg.Rotation.PoolSize,
		logging.NewComponentLogger(logger, "pool"))

	writer := outputs.NewWriter(cfg.Paths.OutputPath)
	orch := enrich.NewOrchestrator(cfg, builder, scheduler, ledger, writer, met, notifier,
		logging.NewComponentLogger(logger, "enrich"))

	lockPath := filepath.Join(cfg.Paths.LogDir, "vjcapd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		notifier:  notifier,
		metrics:   met,
		ledger:    ledger,
		history:   history,
		store:     store,
		scheduler: scheduler,
		orch:      orch,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api"))
	return d, nil
}

// Start acquires the instance lock and launches the scheduler, the
// orchestrator, the status API, and the maintenance loop. Preflight
// failures are logged, not fatal: the daemon degrades (all-video pools,
// skipped warming) rather than refusing to run.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vjcapd instance is already running")
	}

	for _, res := range preflight.RunAll(ctx, d.cfg) {
		if res.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldImpact, "related pipeline features may degrade"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.scheduler.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start prefetch scheduler: %w", err)
	}
	if err := d.orch.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.orch.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	go d.runMaintenance(runCtx)

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("vjcapd started",
		logging.String("lock", d.lockPath),
		logging.String("snapshot", d.cfg.Paths.SnapshotPath),
		logging.String("output", d.cfg.Paths.OutputPath))
	_ = d.notifier.NotifyStarted(ctx)
	return nil
}

// Stop shuts the pipeline down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orch.Stop()
	d.scheduler.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)

	uptime := time.Since(d.startedAt)
	d.logger.Info("vjcapd stopped",
		logging.Int64("passes", d.orch.Passes()),
		logging.Duration("uptime", uptime))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.notifier.NotifyStopped(ctx, int(d.orch.Passes()), uptime)
}

// Close stops the daemon and releases the prefetch journal.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	remaining, resetAt := d.ledger.Remaining()
	st := Status{
		Running:         d.running.Load(),
		Passes:          d.orch.Passes(),
		BudgetRemaining: remaining,
		BudgetCap:       d.ledger.Cap(),
		BudgetResetAt:   resetAt,
		SnapshotPath:    d.cfg.Paths.SnapshotPath,
		OutputPath:      d.cfg.Paths.OutputPath,
		LockFilePath:    d.lockPath,
	}
	if st.Running {
		st.UptimeSeconds = int64(time.Since(d.startedAt).Seconds())
	}
	if counts, err := d.store.CountByStatus(ctx); err == nil {
		st.Prefetch = counts
	}
	if doc, err := outputs.NewWriter(d.cfg.Paths.OutputPath).Load(); err == nil {
		st.ActiveDeck = doc.ActiveDeck
	}
	return st
}
