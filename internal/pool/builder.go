// Package pool assembles the candidate media pool for one track. The
// builder decides how much to ask of each provider, spends primary-provider
// budget, filters already-shown media, and degrades toward the offline
// banks instead of failing a pass.
package pool

import (
	"context"
	"log/slog"
	"strings"

	"vjcap/internal/logging"
	"vjcap/internal/media"
)

// Searcher is the shape of a live GIF/image provider.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]media.MediaItem, error)
}

// VideoSampler hands out offline bank videos, skipping excluded ids.
type VideoSampler interface {
	Sample(count int, exclude map[string]struct{}) []media.MediaItem
}

// GifFallback is the offline GIF bank surface used when the live primary
// cannot cover its slots.
type GifFallback interface {
	Select(keywords []string, limit int) []media.MediaItem
}

// Budget admits primary-provider requests. TryConsume(n) grants at most n
// units; a zero grant routes the slots to fallbacks.
type Budget interface {
	TryConsume(n int) int
}

// History is the per-artist shown-media ledger surface the builder needs.
type History interface {
	Filter(artist string, ids []string) []string
	Record(artist string, ids []string)
}

// maxQueryParts bounds how many keywords feed a provider query.
const maxQueryParts = 4

// Targets is the per-source fetch policy for one pass.
type Targets struct {
	Giphy  int
	Google int
	Video  int
}

// Request carries everything known about the track being enriched. Tags and
// Keywords come from the external metadata enrichment and may be empty.
// WarmClips are prefetched clips for this signature; they fill video slots
// before the raw bank is sampled, costing no remote calls.
type Request struct {
	Snapshot  media.DeckSnapshot
	Tags      []string
	Keywords  []string
	WarmClips []media.MediaItem
}

// Result is one pass's pool plus the query it was built from.
type Result struct {
	Pool       media.Pool
	Query      string
	QueryParts []string

	// WithSecondary reports whether secondary-provider items made it into
	// the pool, which selects the three-source interleave pattern.
	WithSecondary bool
}

// Builder produces MediaPools. Nil giphy/google/gifBank mean that source is
// unconfigured and its slots route elsewhere.
type Builder struct {
	giphy   Searcher
	google  Searcher
	videos  VideoSampler
	gifBank GifFallback
	ledger  Budget
	history History

	sourceShare int
	poolSize    int
	logger      *slog.Logger
}

// NewBuilder wires a Builder. sourceShare is the per-source target when all
// three sources are available (the primary absorbs the secondary's share
// when the secondary is unconfigured); poolSize caps the assembled pool.
func NewBuilder(giphy, google Searcher, videos VideoSampler, gifBank GifFallback, ledger Budget, history History, sourceShare, poolSize int, logger *slog.Logger) *Builder {
	return &Builder{
		giphy:       giphy,
		google:      google,
		videos:      videos,
		gifBank:     gifBank,
		ledger:      ledger,
		history:     history,
		sourceShare: sourceShare,
		poolSize:    poolSize,
		logger:      logging.NewComponentLogger(logger, "pool"),
	}
}

// Targets evaluates the fetch policy for the current provider configuration.
func (b *Builder) Targets() Targets {
	t := Targets{Giphy: b.sourceShare, Google: b.sourceShare, Video: b.sourceShare}
	if b.google == nil {
		t.Giphy += t.Google
		t.Google = 0
	}
	return t
}

// Build assembles the pool for one track. It never returns an error: every
// provider failure shrinks that source's contribution and shifts uncovered
// primary slots to the offline banks, video last.
func (b *Builder) Build(ctx context.Context, req Request) Result {
	artist := req.Snapshot.Signature.Artist
	query, parts := BuildQuery(req.Snapshot.Signature, req.Tags, req.Keywords)
	targets := b.Targets()

	var items []media.MediaItem
	have := make(map[string]struct{})
	add := func(batch []media.MediaItem) {
		for _, item := range batch {
			if _, dup := have[item.ID]; dup {
				continue
			}
			have[item.ID] = struct{}{}
			items = append(items, item)
		}
	}

	gifs := b.fetchGiphy(ctx, artist, query, targets.Giphy)
	add(gifs)

	// Primary slots the live provider could not cover go to the offline
	// GIF bank first, then to video, the fallback of last resort.
	shortfall := targets.Giphy - len(gifs)
	if shortfall > 0 && b.gifBank != nil {
		banked := 0
		for _, item := range b.gifBank.Select(parts, shortfall) {
			if _, dup := have[item.ID]; dup {
				continue
			}
			have[item.ID] = struct{}{}
			items = append(items, item)
			banked++
		}
		shortfall -= banked
	}
	if shortfall > 0 {
		targets.Video += shortfall
		b.logger.Debug("shifting uncovered primary slots to video",
			logging.Int("slots", shortfall))
	}

	googleItems := b.fetchGoogle(ctx, artist, query, targets.Google)
	add(googleItems)

	if targets.Video > 0 {
		taken := 0
		for _, clip := range req.WarmClips {
			if taken == targets.Video {
				break
			}
			if _, dup := have[clip.ID]; dup {
				continue
			}
			have[clip.ID] = struct{}{}
			items = append(items, clip)
			taken++
		}
		if b.videos != nil && taken < targets.Video {
			add(b.videos.Sample(targets.Video-taken, have))
		}
	}

	if len(items) > b.poolSize && b.poolSize > 0 {
		items = items[:b.poolSize]
	}

	result := Result{
		Pool:          media.Pool{Signature: req.Snapshot.Signature, Items: items},
		Query:         query,
		QueryParts:    parts,
		WithSecondary: len(googleItems) > 0,
	}
	counts := result.Pool.BySource()
	b.logger.Info("assembled pool",
		logging.String(logging.FieldArtist, artist),
		logging.String("query", query),
		logging.Int("giphy", len(counts[media.SourceGiphy])),
		logging.Int("google", len(counts[media.SourceGoogle])),
		logging.Int("video", len(counts[media.SourceVideo])),
	)
	return result
}

// fetchGiphy spends budget and returns accepted, history-recorded items.
// Budget units are requested items, spent before the call is made.
func (b *Builder) fetchGiphy(ctx context.Context, artist, query string, target int) []media.MediaItem {
	if b.giphy == nil || target <= 0 {
		return nil
	}

	granted := b.ledger.TryConsume(target)
	if granted == 0 {
		b.logger.Debug("primary provider budget exhausted, skipping",
			logging.String(logging.FieldSource, string(media.SourceGiphy)))
		return nil
	}

	accepted, ok := b.searchAndFilter(ctx, b.giphy, media.SourceGiphy, artist, query, granted, nil)

	// One expanded re-fetch when dedup ate into the grant. A larger raw
	// request skirts the duplicates the first page returned.
	if short := granted - len(accepted); ok && short > 0 {
		if extra := b.ledger.TryConsume(short); extra > 0 {
			more, _ := b.searchAndFilter(ctx, b.giphy, media.SourceGiphy, artist, query, granted+extra, accepted)
			accepted = append(accepted, more...)
		}
	}

	b.record(artist, accepted)
	return accepted
}

// fetchGoogle returns accepted, history-recorded secondary items. The
// secondary carries its own upstream quota, so no ledger is consulted.
func (b *Builder) fetchGoogle(ctx context.Context, artist, query string, target int) []media.MediaItem {
	if b.google == nil || target <= 0 {
		return nil
	}

	accepted, ok := b.searchAndFilter(ctx, b.google, media.SourceGoogle, artist, query, target, nil)
	if ok && len(accepted) < target {
		more, _ := b.searchAndFilter(ctx, b.google, media.SourceGoogle, artist, query, target*2, accepted)
		accepted = append(accepted, more...)
	}

	b.record(artist, accepted)
	return accepted
}

// searchAndFilter issues one batched provider call and drops items the
// artist has already seen or that this pass already holds. Provider failure
// is a per-source skip, never an error; the second return reports whether
// the provider responded at all, which gates the expanded re-fetch.
func (b *Builder) searchAndFilter(ctx context.Context, src Searcher, source media.Source, artist, query string, count int, alreadyHave []media.MediaItem) ([]media.MediaItem, bool) {
	fetched, err := src.Search(ctx, query, count)
	if err != nil {
		logging.WarnWithContext(b.logger, "provider search failed, skipping source this pass",
			"provider_search_failed",
			logging.String(logging.FieldSource, string(source)),
			logging.String("query", query),
			logging.Error(err),
			logging.String(logging.FieldImpact, "pool draws fewer items from this source"))
		return nil, false
	}
	if len(fetched) == 0 {
		return nil, true
	}

	held := make(map[string]struct{}, len(alreadyHave))
	for _, item := range alreadyHave {
		held[item.ID] = struct{}{}
	}

	byID := make(map[string]media.MediaItem, len(fetched))
	ids := make([]string, 0, len(fetched))
	for _, item := range fetched {
		if _, dup := byID[item.ID]; dup {
			continue
		}
		if _, dup := held[item.ID]; dup {
			continue
		}
		byID[item.ID] = item
		ids = append(ids, item.ID)
	}

	accepted := make([]media.MediaItem, 0, len(ids))
	for _, id := range b.history.Filter(artist, ids) {
		accepted = append(accepted, byID[id])
	}
	return accepted, true
}

func (b *Builder) record(artist string, items []media.MediaItem) {
	if len(items) == 0 {
		return
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	b.history.Record(artist, ids)
}

// BuildQuery derives the provider search query for a track. Refined
// keywords win, then raw tags, then the artist and title themselves.
func BuildQuery(sig media.TrackSignature, tags, keywords []string) (string, []string) {
	parts := pickParts(keywords)
	if len(parts) == 0 {
		parts = pickParts(tags)
	}
	if len(parts) == 0 {
		parts = pickParts([]string{sig.Artist, sig.Title})
	}
	return strings.Join(parts, " "), parts
}

func pickParts(candidates []string) []string {
	var parts []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		parts = append(parts, c)
		if len(parts) == maxQueryParts {
			break
		}
	}
	return parts
}
