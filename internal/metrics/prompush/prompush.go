// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Collectors live in a private registry that is pushed on
// Flush; the sync job name is carried in the "sync" label because "job" is
// the Pushgateway grouping key.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"wikisync/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	jobCounter  *prometheus.CounterVec
	jobDuration *prometheus.SummaryVec
	requests    *prometheus.HistogramVec
	pages       *prometheus.CounterVec
	rows        *prometheus.CounterVec
	batches     *prometheus.CounterVec
}

// NewBackend constructs a Prometheus Pushgateway backend.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "wikisync"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		jobCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.JobTotal,
			Help: "Finished sync jobs by job and status.",
		}, []string{"sync", "status"}),
		jobDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.JobDuration,
			Help:       "Wall time of sync jobs in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"sync", "status"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.RequestDuration,
			Help:    "Latency of API page requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sync", "status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.PagesTotal,
			Help: "API result pages fetched.",
		}, []string{"sync"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by kind (extracted, skipped, duplicate, inserted).",
		}, []string{"sync", "kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk load batches flushed.",
		}, []string{"sync"}),
	}

	for _, c := range []prometheus.Collector{b.jobCounter, b.jobDuration, b.requests, b.pages, b.rows, b.batches} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	return b, nil
}

// IncCounter adds delta to the collector registered for name. Unknown
// names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	job := labels["job"]
	switch name {
	case metrics.JobTotal:
		if b.jobCounter != nil {
			b.jobCounter.WithLabelValues(job, labels["status"]).Add(delta)
		}
	case metrics.PagesTotal:
		if b.pages != nil {
			b.pages.WithLabelValues(job).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rows != nil {
			b.rows.WithLabelValues(job, labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.WithLabelValues(job).Add(delta)
		}
	}
}

// ObserveHistogram records value on the job or request duration
// collector. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.JobDuration:
		if b.jobDuration != nil {
			b.jobDuration.WithLabelValues(labels["job"], labels["status"]).Observe(value)
		}
	case metrics.RequestDuration:
		if b.requests != nil {
			b.requests.WithLabelValues(labels["job"], labels["status"]).Observe(value)
		}
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
