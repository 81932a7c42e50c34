// Package gifbank loads a curated offline GIF bank and matches entries to
// track keywords. It backstops the live GIF providers when they are
// disabled, out of budget, or failing.
package gifbank

import (
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"vjcap/internal/logging"
	"vjcap/internal/media"
	"vjcap/internal/outputs"
)

// Scoring weights. A keyword hit on the title outranks one on a tag.
const (
	titleScore = 2
	tagScore   = 1

	// Partial matching only considers words long enough to be meaningful.
	minPartialWordLen = 4
)

type entry struct {
	ID    string   `json:"id"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

type bankFile struct {
	Gifs []entry `json:"gifs"`
}

// Bank holds the loaded GIF bank. Select is safe for concurrent use.
type Bank struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand

	gifs []entry
}

// Option adjusts Bank construction.
type Option func(*Bank)

// WithRand replaces the fallback sampling source.
func WithRand(rnd *rand.Rand) Option {
	return func(b *Bank) {
		b.rnd = rnd
	}
}

// NewBank loads the bank at path. A missing or corrupt file yields an empty
// bank with a warning; the caller's cascade continues past it.
func NewBank(path string, logger *slog.Logger, opts ...Option) *Bank {
	b := &Bank{
		path:   path,
		logger: logging.NewComponentLogger(logger, "gifbank"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}

	var file bankFile
	if err := outputs.ReadJSON(path, &file); err != nil {
		if err != outputs.ErrNotExist {
			logging.WarnWithContext(b.logger, "gif bank unreadable", "gifbank_load_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "offline gif fallback unavailable"))
		}
		return b
	}
	for _, gif := range file.Gifs {
		if gif.ID == "" || gif.URL == "" {
			continue
		}
		b.gifs = append(b.gifs, gif)
	}
	b.logger.Debug("loaded gif bank", logging.Int("gifs", len(b.gifs)))
	return b
}

// Size returns the number of usable bank entries.
func (b *Bank) Size() int {
	return len(b.gifs)
}

// Select returns up to limit GIFs that best match the keywords. Entries are
// scored by keyword hits on title and tags; with no scored matches it tries
// partial word matches, then falls back to a random sample. An empty bank
// returns nil.
func (b *Bank) Select(keywords []string, limit int) []media.MediaItem {
	if limit <= 0 || len(b.gifs) == 0 {
		return nil
	}

	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if f := media.NormalizeText(kw); f != "" {
			folded = append(folded, f)
		}
	}
	if len(folded) == 0 {
		return b.randomSample(limit)
	}

	if matched := b.scoredMatches(folded, limit); matched != nil {
		return matched
	}
	if matched := b.partialMatches(folded, limit); matched != nil {
		b.logger.Debug("gif bank partial match", logging.Any("keywords", keywords))
		return matched
	}
	b.logger.Debug("gif bank fallback to random", logging.Any("keywords", keywords))
	return b.randomSample(limit)
}

func (b *Bank) scoredMatches(folded []string, limit int) []media.MediaItem {
	type scored struct {
		score int
		gif   entry
	}
	var hits []scored
	for _, gif := range b.gifs {
		title := media.NormalizeText(gif.Title)
		score := 0
		for _, kw := range folded {
			if strings.Contains(title, kw) {
				score += titleScore
				continue
			}
			for _, tag := range gif.Tags {
				if strings.Contains(media.NormalizeText(tag), kw) {
					score += tagScore
					break
				}
			}
		}
		if score > 0 {
			hits = append(hits, scored{score: score, gif: gif})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	// Shuffle before the stable sort so ties do not always resolve in bank
	// order across passes.
	b.mu.Lock()
	b.rnd.Shuffle(len(hits), func(i, j int) {
		hits[i], hits[j] = hits[j], hits[i]
	})
	b.mu.Unlock()
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	items := make([]media.MediaItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, toItem(hit.gif))
	}
	return items
}

func (b *Bank) partialMatches(folded []string, limit int) []media.MediaItem {
	words := make([]string, 0, len(folded))
	for _, kw := range folded {
		for _, word := range strings.Fields(kw) {
			if len(word) >= minPartialWordLen {
				words = append(words, word)
			}
		}
	}
	if len(words) == 0 {
		return nil
	}

	var items []media.MediaItem
	for _, gif := range b.gifs {
		text := media.NormalizeText(gif.Title + " " + strings.Join(gif.Tags, " "))
		for _, word := range words {
			if strings.Contains(text, word) {
				items = append(items, toItem(gif))
				break
			}
		}
		if len(items) == limit {
			break
		}
	}
	return items
}

func (b *Bank) randomSample(limit int) []media.MediaItem {
	idx := make([]int, len(b.gifs))
	for i := range idx {
		idx[i] = i
	}
	b.mu.Lock()
	b.rnd.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})
	b.mu.Unlock()

	if limit > len(idx) {
		limit = len(idx)
	}
	items := make([]media.MediaItem, 0, limit)
	for _, i := range idx[:limit] {
		items = append(items, toItem(b.gifs[i]))
	}
	return items
}

func toItem(gif entry) media.MediaItem {
	return media.MediaItem{
		ID:     gif.ID,
		Source: media.SourceGiphy,
		URL:    gif.URL,
		Title:  gif.Title,
	}
}
