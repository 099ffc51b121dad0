// Package metrics exposes Prometheus instrumentation for the Immunet
// service: submission, batch-lifecycle, and decryption round-trip counters,
// served on a dedicated listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serolabs/immunet/ledger"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	submissionsTotal  prometheus.Counter
	batchesOpened     prometheus.Counter
	batchesClosed     prometheus.Counter
	analysisRequests  prometheus.Counter
	analysisCompleted prometheus.Counter
	callbackFailures  *prometheus.CounterVec
}

// New creates and registers the service collectors on a fresh registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		registry:          registry,
		submissionsTotal:  factory("submissions_total", "Accepted record submissions."),
		batchesOpened:     factory("batches_opened_total", "Batches opened."),
		batchesClosed:     factory("batches_closed_total", "Batches closed."),
		analysisRequests:  factory("analysis_requests_total", "Decryption requests dispatched."),
		analysisCompleted: factory("analysis_completed_total", "Decryption callbacks accepted."),
	}

	m.callbackFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callback_failures_total",
		Help:      "Rejected decryption callbacks by condition code.",
	}, []string{"code"})
	registry.MustRegister(m.callbackFailures)

	return m
}

// Sink returns a ledger sink that counts emitted events.
func (m *Metrics) Sink() ledger.Sink {
	return ledger.SinkFunc(func(event ledger.Event) {
		switch event.Kind() {
		case ledger.EventDataSubmitted:
			m.submissionsTotal.Inc()
		case ledger.EventBatchOpened:
			m.batchesOpened.Inc()
		case ledger.EventBatchClosed:
			m.batchesClosed.Inc()
		case ledger.EventAnalysisRequested:
			m.analysisRequests.Inc()
		case ledger.EventAnalysisCompleted:
			m.analysisCompleted.Inc()
		}
	})
}

// ObserveCallbackFailure counts a rejected callback under its condition
// code. Rejections abort the triggering call without emitting an event,
// so they are counted at the boundary rather than through the sink.
func (m *Metrics) ObserveCallbackFailure(err error) {
	m.callbackFailures.WithLabelValues(ledger.ErrorCode(err)).Inc()
}

// Handler returns the scrape handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server returns an HTTP server exposing /metrics on addr.
func (m *Metrics) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
