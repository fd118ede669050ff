package uploads

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures upload telemetry.
type Observer interface {
	RecordSession(backend string, err error)
	RecordChunk(backend string, duration time.Duration, size int, err error)
	RecordWhole(backend string, duration time.Duration, size int, err error)
	RecordRetry(op string, retry int, err error)
}

// PrometheusObserver exports upload metrics to Prometheus.
type PrometheusObserver struct {
	sessions *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewPrometheusObserver registers the upload metrics with reg (the default
// registerer when nil). Registering twice reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "gophdrive"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_total",
			Help:      "Upload sessions opened, by backend and result.",
		}, []string{"backend", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of chunk and whole-body transfers to the backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Transfers that failed after retries.",
		}, []string{"backend", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Payload bytes accepted by the backend.",
		}, []string{"backend"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_total",
			Help:      "Retried backend calls, by operation.",
		}, []string{"op"}),
	}

	if err := register(reg, &o.sessions); err != nil {
		return nil, err
	}
	if err := register(reg, &o.duration); err != nil {
		return nil, err
	}
	if err := register(reg, &o.failures); err != nil {
		return nil, err
	}
	if err := register(reg, &o.bytes); err != nil {
		return nil, err
	}
	if err := register(reg, &o.retries); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			*c = existing
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("register upload metric: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (o *PrometheusObserver) RecordSession(backend string, err error) {
	o.sessions.WithLabelValues(backend, result(err)).Inc()
}

func (o *PrometheusObserver) RecordChunk(backend string, d time.Duration, size int, err error) {
	o.record(backend, "chunk", d, size, err)
}

func (o *PrometheusObserver) RecordWhole(backend string, d time.Duration, size int, err error) {
	o.record(backend, "whole", d, size, err)
}

func (o *PrometheusObserver) record(backend, kind string, d time.Duration, size int, err error) {
	o.duration.WithLabelValues(backend, kind).Observe(d.Seconds())
	if err != nil {
		o.failures.WithLabelValues(backend, kind).Inc()
		return
	}
	o.bytes.WithLabelValues(backend).Add(float64(size))
}

func (o *PrometheusObserver) RecordRetry(op string, _ int, _ error) {
	o.retries.WithLabelValues(op).Inc()
}

type nopObserver struct{}

func (nopObserver) RecordSession(string, error)                   {}
func (nopObserver) RecordChunk(string, time.Duration, int, error) {}
func (nopObserver) RecordWhole(string, time.Duration, int, error) {}
func (nopObserver) RecordRetry(string, int, error)                {}
