package daemon

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"vjcap/internal/logging"
)

const clipRetention = 24 * time.Hour

// runMaintenance periodically prunes warmed clips: finished jobs past the
// retention window go first, and if the cache still exceeds its size bound
// every finished job is purged. Pending and working jobs are never touched.
func (d *Daemon) runMaintenance(ctx context.Context) {
	interval := time.Duration(d.cfg.Workflow.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanupClipCache(ctx)
		}
	}
}

func (d *Daemon) cleanupClipCache(ctx context.Context) {
	removed, err := d.scheduler.CleanupOlderThan(ctx, time.Now().Add(-clipRetention))
	if err != nil {
		d.logger.Warn("clip cache cleanup failed", logging.Error(err))
		return
	}

	bound := int64(d.cfg.Workflow.ClipCacheMaxGiB) << 30
	size := dirSize(d.cfg.Paths.ClipCacheDir)
	if bound > 0 && size > bound {
		purged, err := d.scheduler.CleanupOlderThan(ctx, time.Now())
		if err != nil {
			d.logger.Warn("clip cache purge failed", logging.Error(err))
		} else {
			removed += purged
		}
	}

	if removed > 0 {
		d.logger.Info("clip cache cleanup",
			logging.Int("removed", removed),
			logging.Int64("cache_bytes", dirSize(d.cfg.Paths.ClipCacheDir)))
	}
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
