// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsTotal      *prometheus.CounterVec // label: outcome
	InvalidNotices     prometheus.Counter
	SessionsStarted    prometheus.Counter
	SessionFailures    *prometheus.CounterVec // label: reason
	SupervisorRestarts prometheus.Counter
	ListReloads        prometheus.Counter
	EncounterRequests  *prometheus.CounterVec // label: result

	// Histograms (seconds)
	DispatchDuration prometheus.Observer

	// Gauges
	SessionStateGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_commands_total", Help: "Chat messages handled as commands, by outcome"}, []string{"outcome"})
		InvalidNotices = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_invalid_notices_total", Help: "Multiple-invalid-attempts notices sent"})
		SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_sessions_started_total", Help: "Chat sessions that reached streaming"})
		SessionFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_session_failures_total", Help: "Chat sessions that ended without a stop signal, by reason"}, []string{"reason"})
		SupervisorRestarts = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_supervisor_restarts_total", Help: "Supervised task restarts"})
		ListReloads = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_list_reloads_total", Help: "User list reloads"})
		EncounterRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_encounter_requests_total", Help: "Encounter spawn requests, by result"}, []string{"result"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_dispatch_duration_seconds", Help: "Executor dispatch duration seconds", Buckets: prometheus.DefBuckets})
		SessionStateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_session_state", Help: "Current chat session state (0=idle .. 4=streaming, 5=closing, 6=faulted)"})
	})
}

// CountCommand increments the per-outcome command counter.
func CountCommand(outcome string) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(outcome).Inc()
	}
}

// CountSessionFailure increments the session failure counter for reason.
func CountSessionFailure(reason string) {
	if SessionFailures != nil {
		SessionFailures.WithLabelValues(reason).Inc()
	}
}

// CountEncounter records an encounter sub-request result ("ok", "rejected" or "error").
func CountEncounter(result string) {
	if EncounterRequests != nil {
		EncounterRequests.WithLabelValues(result).Inc()
	}
}

// SetSessionState records the numeric session state.
func SetSessionState(n int) {
	if SessionStateGauge != nil {
		SessionStateGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
