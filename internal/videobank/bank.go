// Package videobank serves clips from the offline dance video directory.
// The bank is the always-available media source: it needs no API budget, so
// rotation slots that live providers cannot fill fall through to it.
package videobank

import (
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vjcap/internal/logging"
	"vjcap/internal/media"
)

// Bank indexes the .mp4 files in a directory and hands out random samples.
// The file list is scanned lazily and cached; Refresh rescans on demand.
type Bank struct {
	dir    string
	logger *slog.Logger
	rnd    *rand.Rand

	mu      sync.Mutex
	files   []string
	scanned bool
}

// Option adjusts Bank construction.
type Option func(*Bank)

// WithRand replaces the sampling source. Tests use this for determinism.
func WithRand(rnd *rand.Rand) Option {
	return func(b *Bank) {
		b.rnd = rnd
	}
}

// NewBank creates a bank over dir. The directory is not scanned until the
// first Sample or Refresh call.
func NewBank(dir string, logger *slog.Logger, opts ...Option) *Bank {
	b := &Bank{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "videobank"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Size returns the number of videos currently indexed.
func (b *Bank) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanLocked()
	return len(b.files)
}

// Refresh rescans the bank directory.
func (b *Bank) Refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanned = false
	b.scanLocked()
}

// Sample returns up to count random videos, skipping any whose id is in
// exclude. When fewer videos remain than requested it returns what exists.
func (b *Bank) Sample(count int, exclude map[string]struct{}) []media.MediaItem {
	if count <= 0 {
		return nil
	}

	b.mu.Lock()
	b.scanLocked()
	candidates := make([]string, 0, len(b.files))
	for _, path := range b.files {
		if _, skip := exclude[itemID(path)]; skip {
			continue
		}
		candidates = append(candidates, path)
	}
	b.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	b.mu.Unlock()

	if len(candidates) == 0 {
		logging.WarnWithContext(b.logger, "video bank has no usable videos", "videobank_empty",
			logging.String("dir", b.dir),
			logging.String(logging.FieldImpact, "video rotation slots will be empty"))
		return nil
	}
	if len(candidates) < count {
		b.logger.Debug("video bank short of request",
			logging.Int("available", len(candidates)),
			logging.Int("requested", count))
		count = len(candidates)
	}

	items := make([]media.MediaItem, 0, count)
	for _, path := range candidates[:count] {
		items = append(items, media.MediaItem{
			ID:     itemID(path),
			Source: media.SourceVideo,
			URL:    path,
			Title:  "Dance Video " + stem(path),
		})
	}
	return items
}

func (b *Bank) scanLocked() {
	if b.scanned {
		return
	}
	b.scanned = true
	b.files = nil

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		logging.WarnWithContext(b.logger, "video bank directory unreadable", "videobank_scan_failed",
			logging.String("dir", b.dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video rotation slots will be empty"))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			continue
		}
		b.files = append(b.files, filepath.Join(b.dir, entry.Name()))
	}
	b.logger.Debug("scanned video bank", logging.Int("videos", len(b.files)))
}

func itemID(path string) string {
	return "bank_" + stem(path)
}

func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
