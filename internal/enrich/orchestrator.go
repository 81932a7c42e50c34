// Package enrich drives the enrichment pipeline: it watches the deck
// metadata snapshot, rebuilds pool and rotation for the active deck when
// its track changes, strips enrichment from idle decks, and schedules
// background clip warming for whatever is likely to play next.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vjcap/internal/config"
	"vjcap/internal/logging"
	"vjcap/internal/media"
	"vjcap/internal/metrics"
	"vjcap/internal/notifications"
	"vjcap/internal/outputs"
	"vjcap/internal/pool"
	"vjcap/internal/prefetch"
	"vjcap/internal/rotation"
	"vjcap/internal/snapshot"
)

// PoolBuilder assembles a media pool for one track.
type PoolBuilder interface {
	Build(ctx context.Context, req pool.Request) pool.Result
}

// Warmer is the proactive clip scheduler surface the orchestrator needs.
// All three calls are non-blocking with respect to warm work.
type Warmer interface {
	Enqueue(ctx context.Context, sig media.TrackSignature) error
	State(ctx context.Context, sig media.TrackSignature) prefetch.Status
	Clips(ctx context.Context, sig media.TrackSignature) []media.MediaItem
}

// BudgetInfo reports ledger standing for notifications and gauges.
type BudgetInfo interface {
	Remaining() (int, time.Time)
	Cap() int
}

type passResult struct {
	deckID string
	sig    media.TrackSignature
	passID string
	record outputs.DeckRecord
}

type inflightPass struct {
	cancel context.CancelFunc
	sig    media.TrackSignature
}

// Orchestrator runs the enrichment loop. One goroutine owns the persisted
// document; enrichment passes run concurrently per deck and hand their
// results back to it, where anything superseded by a newer signature is
// discarded instead of applied.
type Orchestrator struct {
	builder  PoolBuilder
	warmer   Warmer
	budget   BudgetInfo
	writer   *outputs.Writer
	metrics  *metrics.Metrics
	notifier notifications.Service
	logger   *slog.Logger

	rotationSize int
	pollInterval time.Duration
	readSnapshot func() (snapshot.Snapshot, error)

	prev     snapshot.Snapshot
	doc      outputs.Document
	inflight map[string]inflightPass
	resultCh chan passResult

	lastBudgetReset time.Time
	passes          atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithSnapshotReader replaces the metadata source (used in tests).
func WithSnapshotReader(read func() (snapshot.Snapshot, error)) Option {
	return func(o *Orchestrator) {
		o.readSnapshot = read
	}
}

// WithPollInterval overrides the snapshot poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = d
	}
}

// NewOrchestrator wires the enrichment loop.
func NewOrchestrator(cfg *config.Config, builder PoolBuilder, warmer Warmer, budget BudgetInfo, writer *outputs.Writer, m *metrics.Metrics, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Orchestrator {
	snapshotPath := cfg.Paths.SnapshotPath
	o := &Orchestrator{
		builder:      builder,
		warmer:       warmer,
		budget:       budget,
		writer:       writer,
		metrics:      m,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "enrich"),
		rotationSize: cfg.Rotation.Size,
		pollInterval: time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
		readSnapshot: func() (snapshot.Snapshot, error) { return snapshot.Read(snapshotPath) },
		inflight:     make(map[string]inflightPass),
		resultCh:     make(chan passResult, 4),
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 2 * time.Second
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Passes returns how many enrichment passes have been applied.
func (o *Orchestrator) Passes() int64 {
	return o.passes.Load()
}

// Start begins the enrichment loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("orchestrator already running")
	}

	doc, err := o.writer.Load()
	if err != nil {
		logging.WarnWithContext(o.logger, "previous output unreadable, starting from empty document",
			"output_load_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "presentation layer sees an empty record until the next pass"))
		doc = outputs.Document{Decks: map[string]outputs.DeckRecord{}}
	}
	o.doc = doc

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.wg.Add(1)
	go o.run(runCtx)
	return nil
}

// Stop terminates the loop and waits for in-flight passes to unwind.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	o.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-o.resultCh:
			o.apply(ctx, res)
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll reads the snapshot and reacts to per-deck signature and active-flag
// changes. Field jitter produces no work.
func (o *Orchestrator) poll(ctx context.Context) {
	snap, err := o.readSnapshot()
	if err != nil {
		// The capture side replaces the file atomically; a bad read is
		// transient and the next tick retries.
		o.logger.Debug("snapshot unavailable", logging.Error(err))
		return
	}

	changes := snapshot.Diff(o.prev, snap)
	o.prev = snap

	dirty := false
	if o.doc.ActiveDeck != snap.ActiveDeck {
		o.doc.ActiveDeck = snap.ActiveDeck
		dirty = true
	}

	handled := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		handled[change.DeckID] = struct{}{}
		deck := change.Deck
		if deck.Snapshot.Active {
			o.startPass(ctx, change)
			continue
		}

		// Idle deck: drop any prior enrichment immediately and warm its
		// clips so they are ready when it goes live.
		o.cancelInflight(change.DeckID)
		o.doc.Decks[change.DeckID] = o.idleRecord(ctx, deck)
		dirty = true

		if !deck.Snapshot.Signature.IsZero() {
			if err := o.warmer.Enqueue(ctx, deck.Snapshot.Signature); err != nil {
				o.logger.Warn("warm enqueue failed",
					logging.String(logging.FieldSignature, deck.Snapshot.Signature.String()),
					logging.Error(err))
			}
		}
	}

	// A deck idling on a failed warm gets another chance each tick. Enqueue
	// only resets errored journal rows, so settled decks are untouched.
	for id, deck := range snap.Decks {
		if _, ok := handled[id]; ok {
			continue
		}
		if deck.Snapshot.Active || deck.Snapshot.Signature.IsZero() {
			continue
		}
		if o.warmer.State(ctx, deck.Snapshot.Signature) != prefetch.StatusError {
			continue
		}
		if err := o.warmer.Enqueue(ctx, deck.Snapshot.Signature); err != nil {
			o.logger.Warn("warm retry enqueue failed",
				logging.String(logging.FieldSignature, deck.Snapshot.Signature.String()),
				logging.Error(err))
			continue
		}
		o.doc.Decks[id] = o.idleRecord(ctx, deck)
		dirty = true
	}

	if dirty {
		o.writeDoc()
	}
}

// idleRecord builds the stripped record for an inactive deck: base fields
// plus warm status, never stale rotation or pool.
func (o *Orchestrator) idleRecord(ctx context.Context, deck snapshot.DeckState) outputs.DeckRecord {
	rec := outputs.BaseRecord(deck.Snapshot)
	if deck.Snapshot.Signature.IsZero() {
		return rec
	}

	switch o.warmer.State(ctx, deck.Snapshot.Signature) {
	case prefetch.StatusReady:
		rec.Prefetch = outputs.PrefetchReady
		rec.Next = &outputs.NextPreview{
			Artist:    deck.Snapshot.Signature.Artist,
			Title:     deck.Snapshot.Signature.Title,
			ClipCount: len(o.warmer.Clips(ctx, deck.Snapshot.Signature)),
		}
	case prefetch.StatusWorking:
		rec.Prefetch = outputs.PrefetchWorking
	case prefetch.StatusError:
		rec.Prefetch = outputs.PrefetchError
	default:
		rec.Prefetch = outputs.PrefetchPending
	}
	return rec
}

// startPass launches an enrichment pass for an active deck, cancelling any
// previous pass for the same deck. Only the newest signature's result will
// be applied.
func (o *Orchestrator) startPass(ctx context.Context, change snapshot.Change) {
	deck := change.Deck
	sig := deck.Snapshot.Signature
	if prior, ok := o.inflight[change.DeckID]; ok {
		if prior.sig.Equal(sig) {
			return
		}
		prior.cancel()
	}

	passCtx, cancel := context.WithCancel(ctx)
	o.inflight[change.DeckID] = inflightPass{cancel: cancel, sig: sig}

	passID := uuid.NewString()
	o.logger.Info("starting enrichment pass",
		logging.String(logging.FieldDeck, change.DeckID),
		logging.String(logging.FieldSignature, sig.String()),
		logging.String(logging.FieldPassID, passID))

	go func() {
		defer cancel()

		warmClips := o.warmer.Clips(passCtx, sig)
		res := o.builder.Build(passCtx, pool.Request{
			Snapshot:  deck.Snapshot,
			Tags:      deck.Tags,
			Keywords:  deck.Keywords,
			WarmClips: warmClips,
		})
		rot := rotation.Interleave(res.Pool, o.rotationSize, res.WithSecondary)

		rec := outputs.BaseRecord(deck.Snapshot)
		rec.Tags = deck.Tags
		rec.Keywords = deck.Keywords
		rec.Query = res.Query
		rec.QueryParts = res.QueryParts
		rec.Rotation = rot
		rec.Pool = res.Pool.Items

		select {
		case o.resultCh <- passResult{deckID: change.DeckID, sig: sig, passID: passID, record: rec}:
		case <-passCtx.Done():
		}
	}()
}

// apply commits one pass result, unless a newer signature superseded it
// while the pass was in flight.
func (o *Orchestrator) apply(ctx context.Context, res passResult) {
	cur, ok := o.inflight[res.deckID]
	if !ok || !cur.sig.Equal(res.sig) {
		o.logger.Debug("discarding superseded pass",
			logging.String(logging.FieldDeck, res.deckID),
			logging.String(logging.FieldSignature, res.sig.String()),
			logging.String(logging.FieldPassID, res.passID))
		return
	}
	delete(o.inflight, res.deckID)

	o.doc.Decks[res.deckID] = res.record
	o.doc.PassID = res.passID
	o.doc.UpdatedAt = time.Now().UTC()
	o.writeDoc()

	o.passes.Add(1)
	o.metrics.IncPasses()
	o.metrics.SetRotationSize(len(res.record.Rotation))
	o.observeBudget(ctx)

	o.logger.Info("applied enrichment pass",
		logging.String(logging.FieldDeck, res.deckID),
		logging.String(logging.FieldPassID, res.passID),
		logging.Int("rotation", len(res.record.Rotation)),
		logging.Int("pool", len(res.record.Pool)))
}

func (o *Orchestrator) observeBudget(ctx context.Context) {
	remaining, resetAt := o.budget.Remaining()
	o.metrics.SetBudgetRemaining(remaining)
	if remaining > 0 {
		return
	}
	if resetAt.Equal(o.lastBudgetReset) {
		return
	}
	o.lastBudgetReset = resetAt
	o.metrics.IncBudgetDenials()
	if o.notifier != nil {
		_ = o.notifier.NotifyBudgetExhausted(ctx, o.budget.Cap(), resetAt)
	}
}

func (o *Orchestrator) cancelInflight(deckID string) {
	if prior, ok := o.inflight[deckID]; ok {
		prior.cancel()
		delete(o.inflight, deckID)
	}
}

func (o *Orchestrator) writeDoc() {
	if err := o.writer.Write(o.doc); err != nil {
		logging.ErrorWithContext(o.logger, "cannot write output record", "output_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "presentation layer is reading a stale record"))
	}
}
