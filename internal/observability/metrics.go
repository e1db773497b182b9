package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventhub_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBTxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventhub_db_tx_retries_total",
			Help: "Transactions retried after a serialization failure",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventhub_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventhub_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
		[]string{"scope"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_transaction_transitions_total",
			Help: "Transaction status transitions",
		},
		[]string{"from", "to"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_notifications_total",
			Help: "Notification emails by kind and result",
		},
		[]string{"kind", "result"},
	)

	OverdueReviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventhub_overdue_reviews",
			Help: "PENDING transactions past their review deadline",
		},
	)

	ExpiredPayments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventhub_expired_payments_total",
			Help: "Transactions cancelled after the payment deadline",
		},
	)
)
