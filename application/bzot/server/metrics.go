package server

import (
	"bzot/application/bzot/request"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	accepted     prometheus.Counter
	active       prometheus.Gauge
	requests     *prometheus.CounterVec
	requestBytes prometheus.Histogram
	replyErrors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name: "bzot_connections_accepted_total",
			Help: "Total number of accepted connections",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "bzot_connections_active",
			Help: "Number of connections being handled",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bzot_requests_total",
			Help: "Requests by how reading them ended",
		}, []string{"state"}),
		requestBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bzot_request_bytes",
			Help:    "Bytes read per request",
			Buckets: prometheus.ExponentialBuckets(20, 4, 8),
		}),
		replyErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "bzot_reply_errors_total",
			Help: "Replies that could not be written",
		}),
	}
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) requestRead(req *request.Request) {
	if m == nil || req == nil {
		return
	}
	m.requests.WithLabelValues(req.State.String()).Inc()
	m.requestBytes.Observe(float64(len(req.Raw)))
}

func (m *Metrics) replyFailed() {
	if m == nil {
		return
	}
	m.replyErrors.Inc()
}
