package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orgkeys"

// Verification outcomes.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultExpired = "expired"
	ResultRevoked = "revoked"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// Metrics exposes Prometheus instruments for the credential and membership paths.
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	credentialsIssued *prometheus.CounterVec
	verifications     *prometheus.CounterVec
	denials           *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
}

// New registers the instruments on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		credentialsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "API credentials issued, split by one-time flag.",
		}, []string{"one_time"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_verifications_total",
			Help:      "Credential verification attempts by result.",
		}, []string{"result"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denials_total",
			Help:      "Authorization denials by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"endpoint"}),
	}

	collectors := []prometheus.Collector{
		m.httpRequests,
		m.httpDuration,
		m.credentialsIssued,
		m.verifications,
		m.denials,
		m.rateLimited,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	method = sanitizeLabel(strings.ToUpper(method))
	route = sanitizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordCredentialIssued(oneTime bool) {
	if m == nil {
		return
	}
	m.credentialsIssued.WithLabelValues(strconv.FormatBool(oneTime)).Inc()
}

func (m *Metrics) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(sanitizeLabel(result)).Inc()
}

func (m *Metrics) RecordDenial(reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(sanitizeLabel(reason)).Inc()
}

func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(sanitizeLabel(endpoint)).Inc()
}

func sanitizeLabel(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return "unknown"
	}
	return val
}
