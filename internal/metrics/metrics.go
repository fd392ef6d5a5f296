// Package metrics exposes Prometheus collectors for scoring, verification
// and consequence decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	currentScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realign_current_score",
		Help: "Current trust score recorded in the ledger",
	})

	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realign_violations_total",
		Help: "Violations recorded, by kind",
	}, []string{"kind"})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realign_verdicts_total",
		Help: "Claim verdicts produced, by label",
	}, []string{"verdict"})

	judgeCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realign_judge_calls_total",
		Help: "Judge backend invocations, by backend and outcome",
	}, []string{"backend", "outcome"})

	judgeCostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realign_judge_cost_dollars_total",
		Help: "Estimated judge spend charged to the daily budget",
	})

	consequencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realign_consequences_applied_total",
		Help: "Outbound requests processed, by consequence level",
	}, []string{"level"})
)

// ObserveScore records the latest ledger score
func ObserveScore(score int) {
	currentScore.Set(float64(score))
}

// ObserveViolation counts a recorded violation
func ObserveViolation(kind string) {
	violationsTotal.WithLabelValues(kind).Inc()
}

// ObserveVerdict counts a verdict label
func ObserveVerdict(label string) {
	verdictsTotal.WithLabelValues(label).Inc()
}

// ObserveJudgeCall counts a backend invocation; outcome is "ok" or "error"
func ObserveJudgeCall(backend, outcome string) {
	judgeCallsTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveJudgeCost adds charged spend
func ObserveJudgeCost(cost float64) {
	if cost > 0 {
		judgeCostTotal.Add(cost)
	}
}

// ObserveConsequence counts a request processed at the given level
func ObserveConsequence(level string) {
	consequencesTotal.WithLabelValues(level).Inc()
}
