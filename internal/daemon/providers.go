package daemon

import (
	"context"
	"log/slog"
	"sync/atomic"

	"vjcap/internal/logging"
	"vjcap/internal/media"
	"vjcap/internal/metrics"
	"vjcap/internal/notifications"
	"vjcap/internal/pool"
	"vjcap/internal/services"
)

// instrumentedSearcher wraps a provider client with call/failure counters
// and a provider-down notification on the first failure after a success.
type instrumentedSearcher struct {
	source   string
	inner    pool.Searcher
	metrics  *metrics.Metrics
	notifier notifications.Service
	logger   *slog.Logger
	down     atomic.Bool
}

func newInstrumentedSearcher(source string, inner pool.Searcher, m *metrics.Metrics, notifier notifications.Service, logger *slog.Logger) *instrumentedSearcher {
	return &instrumentedSearcher{
		source:   source,
		inner:    inner,
		metrics:  m,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *instrumentedSearcher) Search(ctx context.Context, query string, count int) ([]media.MediaItem, error) {
	s.metrics.IncProviderCalls(s.source)
	items, err := s.inner.Search(ctx, query, count)
	if err == nil {
		if s.down.Swap(false) {
			s.logger.Info("provider recovered", logging.String(logging.FieldSource, s.source))
		}
		return items, nil
	}

	s.metrics.IncProviderFailures(s.source)
	// Quota denials are budget signals, not outages.
	if !services.IsQuotaExhausted(err) && !s.down.Swap(true) {
		_ = s.notifier.NotifyProviderDown(ctx, s.source, err)
	}
	return nil, err
}
