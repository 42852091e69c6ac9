package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/cmstory/internal/store"
)

const metricsNamespace = "cmstory"

// Metrics is a prometheus.Collector for the HTTP surface.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	uploads   *prometheus.CounterVec
	inquiries *prometheus.CounterVec
}

// NewMetrics returns a new Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status code.",
			}, []string{"route", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"route", "method"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "image_uploads_total",
				Help:      "Image uploads by key and result.",
			}, []string{"key", "result"},
		),
		inquiries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "inquiries_total",
				Help:      "Contact form submissions by result.",
			}, []string{"result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.duration.Describe(ch)
	m.uploads.Describe(ch)
	m.inquiries.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.duration.Collect(ch)
	m.uploads.Collect(ch)
	m.inquiries.Collect(ch)
}

// StoreStatus is the part of the image store the status endpoints read.
type StoreStatus interface {
	State() store.State
	Stats() store.Stats
}

// storeCollector exports image store lifecycle counters at scrape time.
type storeCollector struct {
	store StoreStatus

	opens    *prometheus.Desc
	upgrades *prometheus.Desc
	failures *prometheus.Desc
	reopens  *prometheus.Desc
	version  *prometheus.Desc
	state    *prometheus.Desc
}

var _ prometheus.Collector = (*storeCollector)(nil)

// NewStoreCollector returns a collector reporting s.Stats and s.State.
func NewStoreCollector(s StoreStatus) prometheus.Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "image_store", name), help, labels, nil)
	}
	return &storeCollector{
		store:    s,
		opens:    desc("opens_total", "Open attempts."),
		upgrades: desc("upgrades_total", "Opens that applied at least one migration."),
		failures: desc("open_failures_total", "Opens that ended in the failed state."),
		reopens:  desc("reopens_total", "Handles discarded after going stale."),
		version:  desc("schema_version", "Schema version seen at the last successful open."),
		state:    desc("state", "1 for the current connection state.", "state"),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opens
	ch <- c.upgrades
	ch <- c.failures
	ch <- c.reopens
	ch <- c.version
	ch <- c.state
}

// Collect implements the prometheus.Collector interface.
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.opens, prometheus.CounterValue, float64(stats.Opens))
	ch <- prometheus.MustNewConstMetric(c.upgrades, prometheus.CounterValue, float64(stats.Upgrades))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures))
	ch <- prometheus.MustNewConstMetric(c.reopens, prometheus.CounterValue, float64(stats.Reopens))
	ch <- prometheus.MustNewConstMetric(c.version, prometheus.GaugeValue, float64(stats.SchemaVersion))

	current := c.store.State()
	for _, s := range []store.State{store.StateClosed, store.StateOpening, store.StateOpen, store.StateFailed} {
		v := 0.0
		if s == current {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, s.String())
	}
}
