// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package observability

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/authgate/authgate/pkg/errutil"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics contains the Prometheus metrics for authgate.
type Metrics struct {
	FlowTotal         *prometheus.CounterVec
	MailTotal         *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
	RateLimitedTotal  prometheus.Counter
}

// NewMetrics creates and registers the authgate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlowTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_flow_total",
				Help: "Total number of authentication flows by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		MailTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_mail_total",
				Help: "Total number of mail delivery attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authgate_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}

	reg.MustRegister(m.FlowTotal, m.MailTotal, m.HTTPRequestsTotal, m.RateLimitedTotal)
	return m
}

// ObserveFlow counts a flow outcome. Failures are labelled with their error
// code so expected rejections stay distinguishable from faults.
func (m *Metrics) ObserveFlow(flow string, err error) {
	m.FlowTotal.WithLabelValues(flow, outcome(err)).Inc()
}

// ObserveMail counts a delivery attempt.
func (m *Metrics) ObserveMail(kind string, err error) {
	o := OutcomeOK
	if err != nil {
		o = OutcomeError
	}
	m.MailTotal.WithLabelValues(kind, o).Inc()
}

// ObserveRequest counts a handled HTTP request. route is the matched route
// pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveRateLimited counts a rejected request.
func (m *Metrics) ObserveRateLimited() {
	m.RateLimitedTotal.Inc()
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := errutil.Code(err); code != "" {
		return strings.ToLower(code)
	}
	return OutcomeError
}
