// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoanRequestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kikoba_loan_requests_submitted_total",
			Help: "Total number of loan requests submitted",
		},
		[]string{"type"},
	)

	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kikoba_loan_votes_total",
			Help: "Total number of loan votes by decision and outcome",
		},
		[]string{"decision", "outcome"},
	)

	LoanDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kikoba_loan_decisions_total",
			Help: "Total number of loan requests reaching a terminal status",
		},
		[]string{"status", "type"},
	)

	VoteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kikoba_loan_vote_conflicts_total",
			Help: "Total number of vote attempts retried after a concurrent modification",
		},
	)

	PenaltiesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kikoba_penalties_applied_total",
			Help: "Total number of penalties applied to overdue Dharura loans",
		},
	)

	PenaltiesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kikoba_penalties_skipped_total",
			Help: "Total number of candidates found already penalized on re-check",
		},
	)

	PenaltyRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kikoba_penalty_run_duration_seconds",
			Help:    "Duration of penalty accrual runs",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	BulkRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kikoba_bulk_rows_total",
			Help: "Total number of bulk import rows by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
)
