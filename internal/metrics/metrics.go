package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsTotal counts intents reaching each terminal or suspend state
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_intents_total",
			Help: "Total number of intents by resulting state",
		},
		[]string{"state"},
	)

	// AttemptsTotal counts execution attempts by flow and outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_attempts_total",
			Help: "Total number of execution attempts",
		},
		[]string{"flow", "outcome"},
	)

	// ProcessingDuration tracks per-intent execution time by flow
	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayer_processing_duration_seconds",
			Help:    "Intent processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flow"},
	)

	// DeadLettersTotal counts intents moved to the dead-letter store
	DeadLettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relayer_dead_letters_total",
			Help: "Total number of intents dead-lettered",
		},
	)

	// QueueDepth tracks the number of pending intents in the queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayer_queue_depth",
			Help: "Number of pending intents in the durable queue",
		},
	)

	// AwaitingSettlement tracks intents parked on an external settlement leg
	AwaitingSettlement = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayer_awaiting_settlement",
			Help: "Number of intents awaiting external settlement",
		},
	)

	// PollCyclesTotal counts completion poller cycles
	PollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relayer_poll_cycles_total",
			Help: "Total number of completion poller cycles",
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
