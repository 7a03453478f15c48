// Package metrics maintains the prometheus collectors for the node. A nil
// *Metrics is valid and records nothing, which keeps tests free of registry
// bookkeeping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the set of collectors registered for a single node.
type Metrics struct {
	registry *prometheus.Registry

	requests     prometheus.Counter
	errors       prometheus.Counter
	panics       prometheus.Counter
	transactions prometheus.Counter
	pending      prometheus.Gauge
	blocks       prometheus.Counter
	sealFailures prometheus.Counter
	sealDuration prometheus.Histogram
	readFailures prometheus.Counter
}

// New constructs the collectors under the specified namespace and registers
// them with a private registry.
func New(namespace string) *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of http requests handled.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Number of http requests that returned an error.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Number of recovered panics.",
		}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Number of transactions accepted into the pending buffer.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions_pending",
			Help:      "Number of transactions waiting for the next seal.",
		}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_sealed_total",
			Help:      "Number of blocks sealed and appended to the chain.",
		}),
		sealFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seal_failures_total",
			Help:      "Number of seal attempts that failed without changing the chain.",
		}),
		sealDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seal_duration_seconds",
			Help:      "Time spent compressing, encrypting and appending a block.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_read_failures_total",
			Help:      "Number of blocks that could not be decrypted or decompressed.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.errors,
		m.panics,
		m.transactions,
		m.pending,
		m.blocks,
		m.sealFailures,
		m.sealDuration,
		m.readFailures,
	)

	return &m
}

// Handler returns the http handler that exposes the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AddRequest counts a handled request.
func (m *Metrics) AddRequest() {
	if m == nil {
		return
	}
	m.requests.Inc()
}

// AddError counts a request that failed.
func (m *Metrics) AddError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

// AddPanic counts a recovered panic.
func (m *Metrics) AddPanic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

// AddTransaction counts an accepted transaction and records the new size
// of the pending buffer.
func (m *Metrics) AddTransaction(pending int) {
	if m == nil {
		return
	}
	m.transactions.Inc()
	m.pending.Set(float64(pending))
}

// ObserveSeal records the outcome of a seal attempt.
func (m *Metrics) ObserveSeal(d time.Duration, pending int, err error) {
	if m == nil {
		return
	}

	m.sealDuration.Observe(d.Seconds())
	if err != nil {
		m.sealFailures.Inc()
		return
	}

	m.blocks.Inc()
	m.pending.Set(float64(pending))
}

// AddReadFailure counts a block whose payload could not be opened.
func (m *Metrics) AddReadFailure() {
	if m == nil {
		return
	}
	m.readFailures.Inc()
}
