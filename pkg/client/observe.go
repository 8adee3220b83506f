package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome codes for failures that never produced an API error body.
const (
	codeOK             = "ok"
	codeRateLimited    = "rate_limited"
	codeUnacknowledged = "unacknowledged"
	codeCanceled       = "canceled"
	codeTimeout        = "timeout"
	codeTransport      = "transport"
	codeUnknown        = "unknown"

	statusSuccess    = "2xx"
	statusNoResponse = "none"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sonicweb",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "sonicweb API calls by operation, HTTP status and error code.",
		}, []string{"operation", "status", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sonicweb",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "sonicweb API call latency, rate limiter wait included.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sonicweb",
			Subsystem: "client",
			Name:      "results",
			Help:      "Values returned per search or suggest call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.results); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("sonicweb: register client metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("sonicweb: client metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// classify maps a call result to the status and code labels.
func classify(err error) (status, code string) {
	var apiErr *APIError
	switch {
	case err == nil:
		return statusSuccess, codeOK
	case errors.As(err, &apiErr):
		code = apiErr.Code
		if code == "" {
			code = codeUnknown
		}
		return strconv.Itoa(apiErr.Status), code
	case errors.Is(err, ErrNotAcknowledged):
		return statusSuccess, codeUnacknowledged
	case errors.Is(err, ErrRateLimited):
		return statusNoResponse, codeRateLimited
	case errors.Is(err, context.Canceled):
		return statusNoResponse, codeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return statusNoResponse, codeTimeout
	default:
		return statusNoResponse, codeTransport
	}
}

// observer logs and counts API calls. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status, code := classify(err)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, status, code).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("sonicweb call failed",
			"op", op, "status", status, "code", code, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("sonicweb call", "op", op, "duration", dur)
}

// results records how many values a search or suggest call returned.
func (o *observer) results(op string, n int) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.results.WithLabelValues(op).Observe(float64(n))
}
