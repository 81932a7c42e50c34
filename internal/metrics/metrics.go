// Package metrics exposes Prometheus instrumentation for the enrichment
// daemon. All collectors live on a private registry so tests can spin up
// independent instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors.
type Metrics struct {
	registry              *prometheus.Registry
	passesTotal           prometheus.Counter
	providerCallsTotal    *prometheus.CounterVec
	providerFailuresTotal *prometheus.CounterVec
	budgetDenialsTotal    prometheus.Counter
	budgetRemaining       prometheus.Gauge
	prefetchJobs          *prometheus.GaugeVec
	rotationSize          prometheus.Gauge
}

// New creates and registers the daemon's metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	passesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vjcap_passes_total",
		Help: "Total number of enrichment passes completed",
	})
	providerCallsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vjcap_provider_calls_total",
		Help: "Total provider search calls issued, by source",
	}, []string{"source"})
	providerFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vjcap_provider_failures_total",
		Help: "Total provider search calls that failed, by source",
	}, []string{"source"})
	budgetDenialsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vjcap_budget_denials_total",
		Help: "Times the budget ledger granted zero primary-provider calls",
	})
	budgetRemaining := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vjcap_budget_remaining",
		Help: "Primary-provider calls remaining in the current window",
	})
	prefetchJobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vjcap_prefetch_jobs",
		Help: "Prefetch journal depth, by status",
	}, []string{"status"})
	rotationSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vjcap_rotation_size",
		Help: "Item count of the most recently published rotation",
	})

	registry.MustRegister(
		passesTotal,
		providerCallsTotal,
		providerFailuresTotal,
		budgetDenialsTotal,
		budgetRemaining,
		prefetchJobs,
		rotationSize,
	)

	return &Metrics{
		registry:              registry,
		passesTotal:           passesTotal,
		providerCallsTotal:    providerCallsTotal,
		providerFailuresTotal: providerFailuresTotal,
		budgetDenialsTotal:    budgetDenialsTotal,
		budgetRemaining:       budgetRemaining,
		prefetchJobs:          prefetchJobs,
		rotationSize:          rotationSize,
	}
}

// IncPasses increments the completed-pass counter.
func (m *Metrics) IncPasses() {
	m.passesTotal.Inc()
}

// IncProviderCalls increments the per-source call counter.
func (m *Metrics) IncProviderCalls(source string) {
	m.providerCallsTotal.WithLabelValues(source).Inc()
}

// IncProviderFailures increments the per-source failure counter.
func (m *Metrics) IncProviderFailures(source string) {
	m.providerFailuresTotal.WithLabelValues(source).Inc()
}

// IncBudgetDenials increments the zero-grant counter.
func (m *Metrics) IncBudgetDenials() {
	m.budgetDenialsTotal.Inc()
}

// SetBudgetRemaining sets the remaining-budget gauge.
func (m *Metrics) SetBudgetRemaining(n int) {
	m.budgetRemaining.Set(float64(n))
}

// SetPrefetchJobs sets the journal-depth gauge for one status.
func (m *Metrics) SetPrefetchJobs(status string, n int) {
	m.prefetchJobs.WithLabelValues(status).Set(float64(n))
}

// SetRotationSize sets the last-published-rotation gauge.
func (m *Metrics) SetRotationSize(n int) {
	m.rotationSize.Set(float64(n))
}

// Handler returns an http.Handler that serves the registry. updateGauges is
// called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
