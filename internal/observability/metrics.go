// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// AuthMetrics counts auth operation outcomes. It implements auth.Recorder.
type AuthMetrics struct {
	Operations     *prometheus.CounterVec
	ResetThrottled prometheus.Counter
}

// NewAuthMetrics creates and registers the auth metrics.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ResetThrottled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeep_reset_throttled_total",
				Help: "Total number of password reset requests refused by the throttle",
			},
		),
	}

	reg.MustRegister(m.Operations)
	reg.MustRegister(m.ResetThrottled)

	return m
}

// RecordOperation counts one finished operation.
func (m *AuthMetrics) RecordOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	if operation == auth.OpRequestPasswordReset && outcome == string(auth.KindTooManyRequests) {
		m.ResetThrottled.Inc()
	}
}

var _ auth.Recorder = (*AuthMetrics)(nil)

// HTTPMetrics counts API requests.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the HTTP metrics.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatekeep_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)

	return m
}

// RecordRequest records one served request. route is the matched route
// pattern, not the raw path.
func (m *HTTPMetrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
