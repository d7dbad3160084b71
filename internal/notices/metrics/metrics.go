package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notices module.
type Metrics struct {
	// Recipients resolved by notice type, shape and channel
	RecipientsResolved *prometheus.CounterVec

	// Snapshot read plus pipeline latency by notice type
	FetchLatency *prometheus.HistogramVec

	// Notifications queued by notice type and channel
	NotificationsCreated *prometheus.CounterVec

	// Outbox relay results
	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh
// registry so repeated construction does not panic.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecipientsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wrls_notices_recipients_resolved_total",
			Help: "Recipients resolved by notice type, output shape and message type",
		}, []string{"notice_type", "shape", "message_type"}),

		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wrls_notices_fetch_duration_seconds",
			Help:    "Duration of recipient fetches including the snapshot read",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"notice_type"}),

		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wrls_notices_notifications_created_total",
			Help: "Notifications queued for delivery by notice type and message type",
		}, []string{"notice_type", "message_type"}),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "wrls_notices_outbox_published_total",
			Help: "Notifications relayed from the outbox to the delivery topic",
		}),

		OutboxFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "wrls_notices_outbox_failed_total",
			Help: "Outbox relay batches that failed to publish",
		}),
	}
}

// IncrementRecipients records resolved recipients.
func (m *Metrics) IncrementRecipients(noticeType, shape, messageType string, n int) {
	if m != nil {
		m.RecipientsResolved.WithLabelValues(noticeType, shape, messageType).Add(float64(n))
	}
}

// ObserveFetchLatency records the duration of a recipient fetch.
func (m *Metrics) ObserveFetchLatency(noticeType string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(noticeType).Observe(d.Seconds())
	}
}

// IncrementNotifications records queued notifications.
func (m *Metrics) IncrementNotifications(noticeType, messageType string, n int) {
	if m != nil {
		m.NotificationsCreated.WithLabelValues(noticeType, messageType).Add(float64(n))
	}
}

// IncrementOutboxPublished records relayed notifications.
func (m *Metrics) IncrementOutboxPublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}

// IncrementOutboxFailed records a failed relay batch.
func (m *Metrics) IncrementOutboxFailed() {
	if m != nil {
		m.OutboxFailed.Inc()
	}
}
