package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_bookings_created_total",
			Help: "Total bookings created",
		},
	)

	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_seat_conflicts_total",
			Help: "Total booking attempts rejected on seat conflicts",
		},
	)

	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payment_transitions_total",
			Help: "Payment status transitions",
		},
		[]string{"status"},
	)

	CallbacksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_callbacks_rejected_total",
			Help: "Gateway callbacks rejected on verification",
		},
		[]string{"method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
