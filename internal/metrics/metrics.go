// Package metrics exposes the prometheus collectors the service records.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	otpIssued    *prometheus.CounterVec
	otpVerified  *prometheus.CounterVec
	partnerTrans *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil registerer yields a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "One-time passcodes issued, by flow.",
		}, []string{"flow"}),
		otpVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "One-time passcode verification attempts, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		partnerTrans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_partner_transitions_total",
			Help: "Delivery partner lifecycle transitions.",
		}, []string{"to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.otpIssued, m.otpVerified, m.partnerTrans, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) OTPIssued(flow string) {
	if m == nil || m.otpIssued == nil {
		return
	}
	m.otpIssued.WithLabelValues(normalizeLabel(flow)).Inc()
}

// OTPVerified records the outcome label for one verification attempt.
func (m *Metrics) OTPVerified(flow, outcome string) {
	if m == nil || m.otpVerified == nil {
		return
	}
	m.otpVerified.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) PartnerTransition(to string) {
	if m == nil || m.partnerTrans == nil {
		return
	}
	m.partnerTrans.WithLabelValues(normalizeLabel(to)).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
