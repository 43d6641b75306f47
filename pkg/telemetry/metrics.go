package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics exposes Prometheus primitives for outbox relays and their deliveries.
type OutboxMetrics struct {
	dispatch         *prometheus.CounterVec
	dispatchTime     *prometheus.HistogramVec
	backlog          prometheus.Gauge
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Observer
}

// NewOutboxMetrics registers outbox metrics on the given registerer.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homeaccess_outbox_dispatch_total",
		Help: "Counts relay batches by status.",
	}, []string{"status"})

	dispatchTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "homeaccess_outbox_dispatch_duration_seconds",
		Help:    "Relay batch durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "homeaccess_outbox_backlog",
		Help: "Number of pending events in the outbox.",
	})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homeaccess_notification_delivery_total",
		Help: "Notification delivery outcomes.",
	}, []string{"status", "event_type"})

	deliveryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "homeaccess_notification_delivery_duration_seconds",
		Help:    "Notification delivery roundtrip latency.",
		Buckets: prometheus.DefBuckets,
	})

	registerer.MustRegister(
		dispatch,
		dispatchTime,
		backlog,
		deliveries,
		deliveryDuration,
	)

	return &OutboxMetrics{
		dispatch:         dispatch,
		dispatchTime:     dispatchTime,
		backlog:          backlog,
		deliveries:       deliveries,
		deliveryDuration: deliveryDuration,
	}
}

// RecordOutboxBatch registers dispatch batch metrics.
func (m *OutboxMetrics) RecordOutboxBatch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := sanitizeLabel(status)
	m.dispatch.WithLabelValues(statusLabel).Inc()
	m.dispatchTime.WithLabelValues(statusLabel).Observe(duration.Seconds())
}

// SetOutboxBacklog updates the backlog gauge.
func (m *OutboxMetrics) SetOutboxBacklog(value float64) {
	if m == nil {
		return
	}
	m.backlog.Set(value)
}

// RecordDelivery records a single notification delivery attempt.
func (m *OutboxMetrics) RecordDelivery(status, eventType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(sanitizeLabel(status), sanitizeLabel(eventType)).Inc()
	m.deliveryDuration.Observe(duration.Seconds())
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
