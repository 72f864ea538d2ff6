// Package metrics exposes Prometheus counters for the contract engine.
//
// All recording methods are safe on a nil *Metrics so callers and tests can
// skip instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contracts"

type Metrics struct {
	DocumentsGenerated *prometheus.CounterVec
	AllocationRetries  prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	ProviderRequests   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		DocumentsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_generated_total",
			Help:      "Documents generated, by type.",
		}, []string{"type"}),
		AllocationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_number_retries_total",
			Help:      "Document number allocations retried after a conflict.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_events_total",
			Help:      "Signature provider events, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound signing provider requests, by provider, operation and result.",
		}, []string{"provider", "operation", "result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.DocumentsGenerated,
		m.AllocationRetries,
		m.WebhookEvents,
		m.ProviderRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) DocumentGenerated(docType string) {
	if m == nil {
		return
	}
	m.DocumentsGenerated.WithLabelValues(docType).Inc()
}

func (m *Metrics) AllocationRetried() {
	if m == nil {
		return
	}
	m.AllocationRetries.Inc()
}

func (m *Metrics) WebhookEvent(provider, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ProviderRequest(provider, operation, result string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, operation, result).Inc()
}
