package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Actions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_actions_total",
		Help: "Total actions recorded per platform and action type",
	}, []string{"platform", "action", "status"})
	Denials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_policy_denials_total",
		Help: "Total policy denials per gate",
	}, []string{"gate"})
	Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_retries_total",
		Help: "Total retry attempts per operation",
	}, []string{"operation"})
	CircuitOpens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outreach_circuit_opens_total",
		Help: "Total circuit breaker opens",
	})
	Warnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_platform_warnings_total",
		Help: "Total platform warnings recorded per type",
	}, []string{"type"})
	CheckpointFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outreach_checkpoint_flushes_total",
		Help: "Total checkpoint flushes to disk",
	})
	TargetDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outreach_target_duration_seconds",
		Help:    "Per-target processing duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_command_runs_total",
		Help: "Total CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_command_errors_total",
		Help: "Total CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(Actions, Denials, Retries, CircuitOpens, Warnings,
		CheckpointFlushes, TargetDuration, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveTargetDuration records one target's processing duration.
func ObserveTargetDuration(start time.Time) {
	TargetDuration.Observe(time.Since(start).Seconds())
}

// IncAction increments the action counter.
func IncAction(platform, action, status string) {
	Actions.WithLabelValues(platform, action, status).Inc()
}

// IncDenial increments the denial counter for a gate.
func IncDenial(gate string) { Denials.WithLabelValues(gate).Inc() }

// IncRetry increments the retry counter for an operation.
func IncRetry(operation string) { Retries.WithLabelValues(operation).Inc() }

// IncWarning increments the platform warning counter.
func IncWarning(warningType string) { Warnings.WithLabelValues(warningType).Inc() }

// IncCommandRun increments the command invocation counter.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the command failure counter.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
