package prefetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"vjcap/internal/config"
	"vjcap/internal/logging"
	"vjcap/internal/media"
	"vjcap/internal/notifications"
	"vjcap/internal/preflight"
	"vjcap/internal/services"
	"vjcap/internal/services/ffmpeg"
	"vjcap/internal/services/ffprobe"
)

// VideoSampler supplies raw bank videos to cut clips from.
type VideoSampler interface {
	Sample(count int, exclude map[string]struct{}) []media.MediaItem
}

// pollInterval paces idle workers between queue checks. Enqueue kicks
// workers immediately, so this only bounds wakeup latency after a drain.
const pollInterval = 2 * time.Second

// Scheduler warms video clips for signatures before their deck goes
// active. Submission is fire-and-forget; readiness is a non-blocking
// journal lookup. It never touches the live-provider budget.
type Scheduler struct {
	store    *Store
	videos   VideoSampler
	clipper  ffmpeg.Client
	prober   ffprobe.Prober
	notifier notifications.Service
	logger   *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand

	clipDir       string
	clipsPerTrack int
	clipDuration  time.Duration
	fade          time.Duration
	workers       int
	maxAttempts   int
	backoff       time.Duration
	minFreeBytes  uint64

	kick chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler wires a Scheduler from configuration. clipsPerTrack follows
// the rotation's video share so a ready signature can fill its slots.
func NewScheduler(cfg *config.Config, store *Store, videos VideoSampler, clipper ffmpeg.Client, notifier notifications.Service, logger *slog.Logger) *Scheduler {
	share := cfg.Rotation.Size / 3
	if share < 1 {
		share = 1
	}
	workers := cfg.Prefetch.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		store:         store,
		videos:        videos,
		clipper:       clipper,
		prober:        ffprobe.NewCLI(),
		notifier:      notifier,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:        logging.NewComponentLogger(logger, "prefetch"),
		clipDir:       cfg.Paths.ClipCacheDir,
		clipsPerTrack: share,
		clipDuration:  time.Duration(cfg.VideoBank.ClipSeconds * float64(time.Second)),
		fade:          time.Duration(cfg.VideoBank.FadeMillis) * time.Millisecond,
		workers:       workers,
		maxAttempts:   cfg.Prefetch.MaxAttempts,
		backoff:       time.Duration(cfg.Prefetch.RetryBackoffSeconds) * time.Second,
		minFreeBytes:  uint64(cfg.Prefetch.MinFreeGiB) << 30,
		kick:          make(chan struct{}, 1),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled; Wait
// blocks until they have drained.
func (s *Scheduler) Start(ctx context.Context) error {
	reset, err := s.store.ResetStale(ctx)
	if err != nil {
		return fmt.Errorf("reset stale jobs: %w", err)
	}
	if reset > 0 {
		s.logger.Info("requeued interrupted warm jobs", logging.Int64("jobs", reset))
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			s.runWorker(ctx, worker)
		}(i)
	}
	return nil
}

// Wait blocks until all workers have stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Enqueue schedules a signature for warming and returns immediately. An
// already pending, working, or ready signature is a no-op.
func (s *Scheduler) Enqueue(ctx context.Context, sig media.TrackSignature) error {
	scheduled, err := s.store.Enqueue(ctx, sig)
	if err != nil {
		return err
	}
	if scheduled {
		s.logger.Debug("scheduled warm job",
			logging.String(logging.FieldSignature, sig.String()))
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// State reports a signature's warm status without blocking on in-flight
// work. Unknown signatures report pending.
func (s *Scheduler) State(ctx context.Context, sig media.TrackSignature) Status {
	job, err := s.store.Lookup(ctx, sig)
	if err != nil || job == nil {
		return StatusPending
	}
	return job.Status
}

// Clips returns the warmed clip items for a signature, or nil when the
// signature is not ready. Callers fall back to the raw bank.
func (s *Scheduler) Clips(ctx context.Context, sig media.TrackSignature) []media.MediaItem {
	job, err := s.store.Lookup(ctx, sig)
	if err != nil || job == nil || job.Status != StatusReady || job.ClipDir == "" {
		return nil
	}

	entries, err := os.ReadDir(job.ClipDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mp4") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	prefix := sigDirName(sig)
	items := make([]media.MediaItem, 0, len(names))
	for _, name := range names {
		items = append(items, media.MediaItem{
			ID:     "clip_" + prefix + "_" + strings.TrimSuffix(name, ".mp4"),
			Source: media.SourceVideo,
			URL:    filepath.Join(job.ClipDir, name),
			Title:  fmt.Sprintf("%s - %s", job.Signature.Artist, job.Signature.Title),
		})
	}
	return items
}

func (s *Scheduler) runWorker(ctx context.Context, worker int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := s.store.ClaimPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.ErrorWithContext(s.logger, "claim warm job failed", "prefetch_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "warm queue stalls until the journal recovers"))
		} else if job != nil {
			s.process(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job) {
	sig := job.Signature
	attempts := job.Attempts

	var err error
	for attempts < s.maxAttempts {
		attempts++
		err = s.warm(ctx, sig)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Shutdown mid-warm; ResetStale requeues the row next start.
			return
		}
		s.logger.Warn("warm attempt failed",
			logging.String(logging.FieldSignature, sig.String()),
			logging.Int("attempt", attempts),
			logging.Error(err))

		if attempts < s.maxAttempts {
			wait := s.backoff << (attempts - 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	if markErr := s.store.MarkError(ctx, job.ID, attempts, err.Error()); markErr != nil {
		s.logger.Error("mark warm job failed", logging.Error(markErr))
	}
	logging.ErrorWithContext(s.logger, "giving up on warm job", "prefetch_exhausted",
		logging.String(logging.FieldSignature, sig.String()),
		logging.Int("attempts", attempts),
		logging.Error(err),
		logging.String(logging.FieldImpact, "deck will fall back to raw bank videos"))
	if s.notifier != nil {
		_ = s.notifier.NotifyPrefetchFailed(ctx, sig.Artist, sig.Title, err)
	}
}

// warm cuts the clips for one signature and marks the journal ready.
func (s *Scheduler) warm(ctx context.Context, sig media.TrackSignature) error {
	if s.minFreeBytes > 0 {
		free, err := preflight.FreeBytes(s.clipDir)
		if err == nil && free < s.minFreeBytes {
			return services.Wrap(services.ErrTranscode, "prefetch", "warm",
				fmt.Sprintf("only %d bytes free under clip cache", free), nil)
		}
	}

	sources := s.videos.Sample(s.clipsPerTrack, nil)
	if len(sources) == 0 {
		return services.Wrap(services.ErrProviderUnavailable, "prefetch", "warm",
			"video bank returned no sources", nil)
	}

	dir := filepath.Join(s.clipDir, sigDirName(sig))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}

	produced := 0
	for i, src := range sources {
		out := filepath.Join(dir, fmt.Sprintf("clip_%02d.mp4", i))
		err := s.clipper.Clip(ctx, ffmpeg.ClipRequest{
			Input:    src.URL,
			Output:   out,
			Offset:   s.clipOffset(ctx, src.URL),
			Duration: s.clipDuration,
			Fade:     s.fade,
		})
		if err != nil {
			return fmt.Errorf("clip %s: %w", filepath.Base(src.URL), err)
		}
		produced++
	}

	job, err := s.store.Lookup(ctx, sig)
	if err != nil || job == nil {
		return fmt.Errorf("warm job vanished for %s: %w", sig, err)
	}
	if err := s.store.MarkReady(ctx, job.ID, dir, produced); err != nil {
		return err
	}
	s.logger.Info("warmed clips",
		logging.String(logging.FieldSignature, sig.String()),
		logging.Int("clips", produced))
	return nil
}

// clipOffset picks a random starting point inside the source so repeated
// warms do not always cut the same opening second. Probe failures fall
// back to the head of the file.
func (s *Scheduler) clipOffset(ctx context.Context, path string) time.Duration {
	if s.prober == nil {
		return 0
	}
	duration, err := s.prober.DurationSeconds(ctx, path)
	if err != nil || duration <= 0 {
		return 0
	}
	window := time.Duration(duration*float64(time.Second)) - s.clipDuration
	if window <= 0 {
		return 0
	}
	s.rndMu.Lock()
	offset := s.rnd.Int63n(int64(window))
	s.rndMu.Unlock()
	return time.Duration(offset)
}

// sigDirName derives a stable directory name for a signature's clips.
func sigDirName(sig media.TrackSignature) string {
	sum := sha1.Sum([]byte(sig.Key()))
	return hex.EncodeToString(sum[:6])
}

// CleanupOlderThan removes terminal journal rows and their clip files not
// touched since cutoff. Returns how many clip directories were removed.
func (s *Scheduler) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	dirs, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range dirs {
		if !strings.HasPrefix(filepath.Clean(dir), filepath.Clean(s.clipDir)) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove stale clip dir failed",
				logging.String("dir", dir), logging.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
