package dedup

import (
	"log/slog"
	"sync"

	"vjcap/internal/logging"
	"vjcap/internal/media"
	"vjcap/internal/outputs"
)

// BucketKey derives the history bucket for a signature. Tuning dedup to
// per-track scope means keying on sig.Key() here instead.
func BucketKey(sig media.TrackSignature) string {
	return media.NormalizeText(sig.Artist)
}

// History is the per-artist shown-media ledger. Filter never mutates;
// Record appends and evicts oldest-first past the cap. Records for the same
// artist serialize; different artists proceed independently.
type History struct {
	path   string
	logger *slog.Logger
	cap    int

	mu      sync.RWMutex
	buckets map[string]*bucket

	saveMu sync.Mutex
}

type bucket struct {
	mu  sync.Mutex
	ids []string
	set map[string]struct{}
}

type persistedState struct {
	Artists map[string][]string `json:"artists"`
}

// NewHistory loads or initializes the history at path. Corrupt state
// reinitializes empty with a loud warning; losing history only risks a
// repeated GIF, never a stuck pipeline.
func NewHistory(path string, perArtistCap int, logger *slog.Logger) *History {
	logger = logging.NewComponentLogger(logger, "dedup")

	h := &History{
		path:    path,
		logger:  logger,
		cap:     perArtistCap,
		buckets: make(map[string]*bucket),
	}

	var st persistedState
	if err := outputs.ReadJSON(path, &st); err != nil {
		if err != outputs.ErrNotExist {
			logging.WarnWithContext(logger, "history state unreadable, starting fresh", "dedup_state_corrupt",
				logging.Error(err),
				logging.String(logging.FieldImpact, "recently shown media may repeat"))
		}
		return h
	}

	for artist, ids := range st.Artists {
		b := newBucket()
		for _, id := range ids {
			b.append(id)
		}
		b.evict(perArtistCap)
		h.buckets[artist] = b
	}
	logger.Debug("loaded history", logging.Int("artists", len(h.buckets)))
	return h
}

func newBucket() *bucket {
	return &bucket{set: make(map[string]struct{})}
}

func (b *bucket) append(id string) {
	if id == "" {
		return
	}
	if _, seen := b.set[id]; seen {
		return
	}
	b.ids = append(b.ids, id)
	b.set[id] = struct{}{}
}

func (b *bucket) evict(cap int) {
	if cap <= 0 {
		return
	}
	for len(b.ids) > cap {
		oldest := b.ids[0]
		b.ids = b.ids[1:]
		delete(b.set, oldest)
	}
}

// Filter returns the subset of candidateIds not present in the artist's
// history, preserving candidate order. It never mutates state.
func (h *History) Filter(artist string, candidateIds []string) []string {
	key := media.NormalizeText(artist)

	h.mu.RLock()
	b := h.buckets[key]
	h.mu.RUnlock()

	if b == nil {
		return append([]string(nil), candidateIds...)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	unseen := make([]string, 0, len(candidateIds))
	for _, id := range candidateIds {
		if _, seen := b.set[id]; !seen {
			unseen = append(unseen, id)
		}
	}
	return unseen
}

// Record appends usedIds to the artist's ordered set, evicting oldest-first
// beyond the cap, then flushes to disk.
func (h *History) Record(artist string, usedIds []string) {
	if len(usedIds) == 0 {
		return
	}
	key := media.NormalizeText(artist)
	if key == "" {
		return
	}

	h.mu.Lock()
	b := h.buckets[key]
	if b == nil {
		b = newBucket()
		h.buckets[key] = b
	}
	h.mu.Unlock()

	b.mu.Lock()
	for _, id := range usedIds {
		b.append(id)
	}
	b.evict(h.cap)
	b.mu.Unlock()

	h.persist()
}

// Seen returns a copy of the artist's history in insertion order.
func (h *History) Seen(artist string) []string {
	key := media.NormalizeText(artist)

	h.mu.RLock()
	b := h.buckets[key]
	h.mu.RUnlock()

	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

// Artists returns the bucket keys currently tracked.
func (h *History) Artists() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.buckets))
	for k := range h.buckets {
		keys = append(keys, k)
	}
	return keys
}

// Clear drops all history and persists the empty state.
func (h *History) Clear() {
	h.mu.Lock()
	h.buckets = make(map[string]*bucket)
	h.mu.Unlock()
	h.persist()
}

// persist snapshots all buckets and writes atomically. saveMu keeps at most
// one write in flight without holding up Record callers on other artists.
func (h *History) persist() {
	if h.path == "" {
		return
	}

	h.saveMu.Lock()
	defer h.saveMu.Unlock()

	st := persistedState{Artists: make(map[string][]string)}
	h.mu.RLock()
	for artist, b := range h.buckets {
		b.mu.Lock()
		st.Artists[artist] = append([]string(nil), b.ids...)
		b.mu.Unlock()
	}
	h.mu.RUnlock()

	if err := outputs.WriteJSONAtomic(h.path, st); err != nil {
		logging.WarnWithContext(h.logger, "persist history failed", "dedup_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a restart may repeat recently shown media"))
	}
}
