package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clawinfra/smartroute/internal/router"
)

// Registry holds the routing metrics. It implements router.Recorder.
type Registry struct {
	reg *prometheus.Registry

	DecisionsTotal  *prometheus.CounterVec
	PromotionsTotal *prometheus.CounterVec
	SignalsTotal    *prometheus.CounterVec
	ComplexityScore prometheus.Histogram
	Confidence      prometheus.Histogram
}

var _ router.Recorder = (*Registry)(nil)

// New creates a Registry with all routing metrics registered on a private
// prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartroute_decisions_total",
			Help: "Routing decisions by selected tier",
		}, []string{"tier"}),
		PromotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartroute_promotions_total",
			Help: "Low-confidence promotions by source and target tier",
		}, []string{"from", "to"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartroute_confidence_signals_total",
			Help: "Confidence degradation signals detected in answers",
		}, []string{"type"}),
		ComplexityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartroute_complexity_score",
			Help:    "Normalised complexity score of routed inputs",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartroute_confidence",
			Help:    "Confidence score of assessed answers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(m.DecisionsTotal, m.PromotionsTotal, m.SignalsTotal, m.ComplexityScore, m.Confidence)
	return m
}

// ObserveDecision counts a decision by tier and records its normalised score.
func (m *Registry) ObserveDecision(d router.RoutingDecision) {
	m.DecisionsTotal.WithLabelValues(d.Tier.String()).Inc()
	m.ComplexityScore.Observe(float64(d.Score.NormalizedScore))
}

// ObserveConfidence records the confidence score and counts each signal by type.
func (m *Registry) ObserveConfidence(a router.ConfidenceAssessment) {
	m.Confidence.Observe(a.Score)
	for _, s := range a.Signals {
		m.SignalsTotal.WithLabelValues(string(s.Type)).Inc()
	}
}

// ObservePromotion counts a promotion from one tier to another.
func (m *Registry) ObservePromotion(from, to router.Tier) {
	m.PromotionsTotal.WithLabelValues(from.String(), to.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
