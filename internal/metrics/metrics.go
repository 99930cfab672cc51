// Package metrics exposes this service's Prometheus metrics via
// prometheus/client_golang.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this service registers.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	liveSubscribers  *prometheus.GaugeVec
	dbLockHoldSeconds prometheus.Histogram
}

// New creates and registers the collectors named in SPEC_FULL.md §4.13:
// nightwatch_http_requests_total{route,status}, nightwatch_live_subscribers,
// and nightwatch_db_lock_hold_seconds.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightwatch_http_requests_total",
			Help: "Total HTTP requests handled, by route and status code.",
		}, []string{"route", "status"}),
		liveSubscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nightwatch_live_subscribers",
			Help: "Current number of live-view subscribers, by stream id.",
		}, []string{"stream_id"}),
		dbLockHoldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nightwatch_db_lock_hold_seconds",
			Help:    "Duration the recording database's coarse lock was held per request.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requestsTotal, m.liveSubscribers, m.dbLockHoldSeconds)
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// SetLiveSubscribers records the current subscriber count for a stream.
func (m *Metrics) SetLiveSubscribers(streamID int32, n int) {
	m.liveSubscribers.WithLabelValues(strconv.Itoa(int(streamID))).Set(float64(n))
}

// ObserveLockHold records how long a single request held the database
// lock, in seconds.
func (m *Metrics) ObserveLockHold(seconds float64) {
	m.dbLockHoldSeconds.Observe(seconds)
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
