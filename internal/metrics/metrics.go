// Package metrics defines the Prometheus collectors for the trading
// pipeline and the HTTP server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesFetched counts quotes successfully fetched and published.
	QuotesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfunk_quotes_fetched_total",
		Help: "Total number of quotes fetched and published downstream",
	})

	// FetchErrors counts failed quote or price fetches.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfunk_fetch_errors_total",
		Help: "Total number of failed upstream fetches",
	})

	// PlansEmitted counts plans emitted by the planner, per strategy.
	PlansEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfunk_plans_emitted_total",
		Help: "Total number of trading plans emitted",
	}, []string{"strategy"})

	// Executions counts completed executions by outcome.
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfunk_executions_total",
		Help: "Total number of plan executions by outcome",
	}, []string{"outcome"})

	// ExecutionDuration observes wall-clock execution time per plan.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfunk_execution_duration_seconds",
		Help:    "Plan execution duration including retries",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// InflightExecutions tracks executions currently holding a permit.
	InflightExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfunk_inflight_executions",
		Help: "Number of plan executions currently in flight",
	})

	// FeedbackApplied counts learning adjustments applied, per quality bucket.
	FeedbackApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfunk_feedback_applied_total",
		Help: "Total number of learning feedback applications",
	}, []string{"quality"})

	// WinRate is the observer's cumulative success ratio.
	WinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfunk_win_rate",
		Help: "Cumulative ratio of successful executions",
	})

	// OpenPositions is the number of positions the observer tracks.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfunk_open_positions",
		Help: "Number of open positions tracked by the observer",
	})

	// AdvisorRequests counts AI advisor calls by outcome.
	AdvisorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfunk_advisor_requests_total",
		Help: "Total number of AI advisor requests by outcome",
	}, []string{"outcome"})
)
