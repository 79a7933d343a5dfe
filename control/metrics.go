// control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime metrics for the todo server, kept on a private Prometheus registry
// and rendered in the text exposition format for GET /metrics.

package control

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsNamespace prefixes every metric name.
const MetricsNamespace = "hioload_todo"

// ExpositionContentType is the content type of Render output.
const ExpositionContentType = "text/plain; version=0.0.4; charset=utf-8"

// Metrics holds the collectors shared by listener, router and pool.
type Metrics struct {
	registry    *prometheus.Registry
	factory     promauto.Factory
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	connections prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		factory:  factory,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "requests_total",
			Help:      "Requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent routing and handling a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "errors_total",
			Help:      "Failed exchanges, by error kind.",
		}, []string{"kind"}),
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_total",
			Help:      "Accepted TCP connections.",
		}),
	}
}

// ObserveRequest records one routed request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveError counts a failure of the given kind.
func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// ConnectionAccepted counts one accepted connection.
func (m *Metrics) ConnectionAccepted() {
	m.connections.Inc()
}

// GaugeFunc exposes fn as a gauge sampled at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// CounterFunc exposes fn as a monotonically increasing counter.
func (m *Metrics) CounterFunc(name, help string, fn func() float64) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Render gathers every collector into the text exposition format.
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode metrics: %w", err)
		}
	}
	return buf.Bytes(), nil
}
