package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prompt gateway.
type Metrics struct {
	DispatchTotal    *prometheus.CounterVec
	FirstChunkMs     *prometheus.HistogramVec
	StreamDurationMs *prometheus.HistogramVec
	StreamChunks     *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_gateway_dispatch_total",
			Help: "Total number of prompt requests dispatched, by route and outcome.",
		}, []string{"route", "status"}),

		FirstChunkMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prompt_gateway_first_chunk_ms",
			Help:    "Time from request receipt to the first streamed chunk in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"route"}),

		StreamDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prompt_gateway_stream_duration_ms",
			Help:    "Total request duration in milliseconds, including the full stream.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		}, []string{"route"}),

		StreamChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_gateway_stream_chunks_total",
			Help: "Total output chunks relayed to clients.",
		}, []string{"route"}),
	}
}

// Dispatch outcomes used as the status label.
const (
	StatusOK            = "ok"
	StatusUpstreamError = "upstream_error"
	StatusStreamError   = "stream_error"
)

// RecordDispatch records the outcome of one request.
func (m *Metrics) RecordDispatch(route, status string) {
	m.DispatchTotal.WithLabelValues(route, status).Inc()
}

// RecordStream records metrics for a finished stream.
func (m *Metrics) RecordStream(labels StreamLabels) {
	if labels.Chunks > 0 {
		m.FirstChunkMs.WithLabelValues(labels.Route).Observe(labels.FirstChunkMs)
		m.StreamChunks.WithLabelValues(labels.Route).Add(float64(labels.Chunks))
	}
	m.StreamDurationMs.WithLabelValues(labels.Route).Observe(labels.DurationMs)
}

// StreamLabels holds the values recorded for one stream.
type StreamLabels struct {
	Route        string
	Chunks       int
	FirstChunkMs float64
	DurationMs   float64
}
