package utils

import "github.com/prometheus/client_golang/prometheus"

// Business counters for the rewards engine. Registered by middleware.InitPrometheus.
var (
	StepsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refit_steps_ingested_total",
			Help: "Steps applied to the ledger, by action",
		},
		[]string{"action"},
	)
	CoinsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refit_coins_awarded_total",
			Help: "Coins credited to users, by source",
		},
		[]string{"source"},
	)
	ObjectiveTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refit_objective_transitions_total",
			Help: "Objective assignment state transitions",
		},
		[]string{"transition"},
	)
	AuditDrift = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refit_audit_drift_total",
			Help: "Users whose stored counters disagreed with the ledger",
		},
	)
)

// BusinessCollectors lists the engine collectors for registration.
func BusinessCollectors() []prometheus.Collector {
	return []prometheus.Collector{StepsIngested, CoinsAwarded, ObjectiveTransitions, AuditDrift}
}
