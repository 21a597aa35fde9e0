package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "therapy_booking"

var (
	// SlotsMaterialized counts slot instances actually inserted by the materializer.
	SlotsMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slots_materialized_total",
		Help:      "Slot instances inserted by materialization",
	})

	// MaterializeRuns counts materialization runs by outcome (ok, error).
	MaterializeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "materialize_runs_total",
		Help:      "Materialization runs by outcome",
	}, []string{"outcome"})

	// BookingAttempts counts BookSlot calls by outcome (error kind or "booked").
	BookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_attempts_total",
		Help:      "BookSlot attempts by outcome",
	}, []string{"outcome"})

	// LeaveDecisions counts leave decisions by result.
	LeaveDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leave_decisions_total",
		Help:      "Leave approvals and rejections by result",
	}, []string{"decision", "outcome"})

	// CascadeCancellations counts bookings cancelled by approved leave.
	CascadeCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_cancellations_total",
		Help:      "Bookings cancelled because the provider's leave was approved",
	})

	// ApprovalDuration observes the leave approval transaction.
	ApprovalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "leave_approval_duration_seconds",
		Help:      "Duration of the leave approval transaction",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	})

	// Notifications counts outbound notifications by outcome (sent, failed, dropped).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound notifications by outcome",
	}, []string{"outcome"})

	// RPCRequests counts gRPC calls by method and status code.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "gRPC requests by method and code",
	}, []string{"method", "code"})
)
