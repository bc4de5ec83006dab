package metrics

// Package metrics counts what a session reported and how the Qase API
// behaved. The counters are written to a node_exporter textfile at the end
// of the session.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "qasego"

var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	results         *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	sessionDuration prometheus.Gauge
}

// New creates Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_requests_total",
			Help:      "Count of Qase API requests",
		}, []string{
			"endpoint",
			"code",
		}),
		apiDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of Qase API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{
			"endpoint",
		}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "results_total",
			Help:      "Count of result decisions",
		}, []string{
			"decision",
			"status",
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Count of errors",
		}, []string{
			"error",
		}),
		sessionDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of the test session",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts a Qase API call. code is 0 when no response arrived.
func (m *Metrics) RecordRequest(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordResult counts a reducer decision.
func (m *Metrics) RecordResult(decision, status string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(decision, status).Inc()
}

// RecordError counts err under label and the type of its innermost cause.
// Error messages carry run ids and URLs, so they never become labels.
func (m *Metrics) RecordError(label string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errorsTotal.WithLabelValues(fmt.Sprintf("%s.%s", label, errToLabel(errorType(err)))).Inc()
}

// RecordSession sets the session duration.
func (m *Metrics) RecordSession(d time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.Set(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// errorType names the innermost wrapped error, e.g. "qase.APIError"
func errorType(err error) string {
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// errToLabel tries to make the error type a more valid Prometheus label
func errToLabel(name string) string {
	errClean := nonAlphanumericRegex.ReplaceAllString(strings.ReplaceAll(name, ".", " "), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}
