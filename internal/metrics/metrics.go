// Package metrics exposes Prometheus collectors for draft editing and
// expense submission.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitwise"

// ResultOK labels a reconciliation that produced a result.
const ResultOK = "ok"

// Recorder holds the collectors on its own registry.
type Recorder struct {
	registry        *prometheus.Registry
	draftEvents     *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	openDrafts      prometheus.Gauge
}

// NewRecorder registers the collectors plus the Go and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		draftEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_events_total",
			Help:      "Draft events applied, by event type.",
		}, []string{"type"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciliation attempts, by outcome (ok or validation error code).",
		}, []string{"result"}),
		openDrafts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_drafts",
			Help:      "Draft sessions currently held in memory.",
		}),
	}

	r.registry.MustRegister(
		r.draftEvents,
		r.reconciliations,
		r.openDrafts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// DraftEvent counts one applied event.
func (r *Recorder) DraftEvent(eventType string) {
	r.draftEvents.WithLabelValues(eventType).Inc()
}

// Reconciliation counts one reconciliation outcome.
func (r *Recorder) Reconciliation(result string) {
	r.reconciliations.WithLabelValues(result).Inc()
}

// OpenDrafts sets the open draft gauge.
func (r *Recorder) OpenDrafts(n int) {
	r.openDrafts.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Nop discards every observation. It is used when metrics are disabled.
type Nop struct{}

func (Nop) DraftEvent(string)     {}
func (Nop) Reconciliation(string) {}
func (Nop) OpenDrafts(int)        {}
