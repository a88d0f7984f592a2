// Package metrics records operational metrics for sync runs behind a small,
// pluggable Backend. The default backend is a no-op, so call sites never need
// to check whether metrics are configured. Concrete systems live in
// subpackages (prompush, datadog).
package metrics

import "time"

// Metric names emitted by the sync pipeline.
const (
	JobTotal        = "wikisync_job_total"
	JobDuration     = "wikisync_job_duration_seconds"
	PagesTotal      = "wikisync_pages_total"
	RowsTotal       = "wikisync_rows_total"
	BatchesTotal    = "wikisync_batches_total"
	RequestDuration = "wikisync_request_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordJob counts one finished job run and its wall time.
func RecordJob(job string, err error, d time.Duration) {
	lbls := Labels{"job": job, "status": status(err)}
	backend.IncCounter(JobTotal, 1, lbls)
	backend.ObserveHistogram(JobDuration, d.Seconds(), lbls)
}

// RecordRequest observes the latency of one API page request.
func RecordRequest(job string, err error, d time.Duration) {
	backend.ObserveHistogram(RequestDuration, d.Seconds(), Labels{"job": job, "status": status(err)})
}

// RecordPage counts one fetched result page.
func RecordPage(job string) {
	backend.IncCounter(PagesTotal, 1, Labels{"job": job})
}

// RecordRows increments the row counter for job and kind. Kinds used by the
// pipeline are "extracted", "skipped", "duplicate" and "inserted".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the batch counter for job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
