// Package metrics exposes Prometheus collectors for provider tiers, backfill,
// rate resolution and model retries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "travel"

type Metrics struct {
	registry *prometheus.Registry

	tierOutcomes    *prometheus.CounterVec
	backfilled      *prometheus.CounterVec
	rateResolutions *prometheus.CounterVec
	modelAttempts   *prometheus.CounterVec
	pruned          prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

// New registers all collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		tierOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_outcomes_total",
			Help:      "Listing tier calls by kind, tier and outcome.",
		}, []string{"kind", "tier", "status"}),
		backfilled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfilled_records_total",
			Help:      "Synthetic listing records appended to reach the fill target.",
		}, []string{"kind"}),
		rateResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_resolutions_total",
			Help:      "Exchange rate lookups by the source that satisfied them.",
		}, []string{"source"}),
		modelAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_invocations_total",
			Help:      "Model invocations by final outcome.",
		}, []string{"outcome"}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_identifiers_total",
			Help:      "Identifiers removed from booking batches after upstream rejection.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) TierOutcome(kind, tier, status string) {
	m.tierOutcomes.WithLabelValues(kind, tier, status).Inc()
}

func (m *Metrics) Backfilled(kind string, count int) {
	if count > 0 {
		m.backfilled.WithLabelValues(kind).Add(float64(count))
	}
}

func (m *Metrics) RateResolved(source string) {
	m.rateResolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) ModelInvocation(outcome string) {
	m.modelAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IdentifiersPruned(count int) {
	if count > 0 {
		m.pruned.Add(float64(count))
	}
}

func (m *Metrics) HTTPRequest(route, code string) {
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
