// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schedulebot"

// Reminder engine metrics
var (
	// RemindersFired counts dispatched reminders by tier
	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Reminders successfully posted and recorded, by tier",
		},
		[]string{"tier"},
	)

	// DispatchFailures counts failed dispatch steps (delete, post, persist)
	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Reminder dispatch failures by stage",
		},
		[]string{"stage"},
	)

	// TickDuration tracks how long one scheduler pass takes
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one scheduler tick in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// MalformedEvents counts stored events skipped because they could not be decoded
	MalformedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Stored events skipped during a tick because they could not be decoded",
		},
	)

	// CleanupJobs counts deferred cleanup executions by result
	CleanupJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_jobs_total",
			Help:      "Deferred message cleanup jobs by result",
		},
		[]string{"result"},
	)
)

// Vote metrics
var (
	// VotesRetracted counts reactions removed to keep one vote per user
	VotesRetracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_retracted_total",
			Help:      "Vote reactions retracted because the user picked another option",
		},
	)

	// ReactionsHandled counts inbound reactions by outcome
	ReactionsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_handled_total",
			Help:      "Inbound reactions by outcome (ignored, withdrawn, superseded, reconciled, failed)",
		},
		[]string{"outcome"},
	)
)

// Notifier metrics
var (
	// CircuitBreakerState tracks the notifier breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// NotifierCalls counts outbound chat platform calls by operation and status
	NotifierCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_calls_total",
			Help:      "Outbound chat platform calls by operation and status",
		},
		[]string{"operation", "status"},
	)
)
