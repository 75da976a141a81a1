package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "rainlog_"

	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
	resultMissing = "not_found"
)

var (
	registerOnce sync.Once

	observationWrites *prometheus.CounterVec
	inlineUpdates     *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	loginTotal *prometheus.CounterVec

	eventPublishTotal *prometheus.CounterVec
	snapshotTotal     *prometheus.CounterVec
)

// Init registers metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		observationWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "observation_writes_total",
				Help: "Observation writes by operation and result",
			},
			[]string{"op", "result"},
		)
		inlineUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inline_updates_total",
				Help: "Inline field updates by field and result",
			},
			[]string{"field", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Spreadsheet exports by layout and result",
			},
			[]string{"layout", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Spreadsheet export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"layout", "result"},
		)

		loginTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		)

		eventPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_publish_total",
				Help: "Observation change events published by result",
			},
			[]string{"result"},
		)
		snapshotTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_total",
				Help: "Scheduled export snapshots by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			observationWrites,
			inlineUpdates,
			exportTotal,
			exportLatency,
			loginTotal,
			eventPublishTotal,
			snapshotTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncObservationWrite counts a create, update or delete.
func IncObservationWrite(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if observationWrites != nil {
		observationWrites.WithLabelValues(op, result).Inc()
	}
}

// IncInlineUpdate counts an inline update attempt.
func IncInlineUpdate(field, result string) {
	if field == "" {
		field = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if inlineUpdates != nil {
		inlineUpdates.WithLabelValues(field, result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(layout, result string, duration time.Duration) {
	if layout == "" {
		layout = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(layout, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(layout, result).Observe(duration.Seconds())
	}
}

// IncLogin counts a login attempt.
func IncLogin(result string) {
	if result == "" {
		result = resultSuccess
	}
	if loginTotal != nil {
		loginTotal.WithLabelValues(result).Inc()
	}
}

// IncEventPublish counts a change event delivery.
func IncEventPublish(result string) {
	if result == "" {
		result = resultSuccess
	}
	if eventPublishTotal != nil {
		eventPublishTotal.WithLabelValues(result).Inc()
	}
}

// IncSnapshot counts a scheduled snapshot run.
func IncSnapshot(result string) {
	if result == "" {
		result = resultSuccess
	}
	if snapshotTotal != nil {
		snapshotTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultInvalid  = resultInvalid
	ResultNotFound = resultMissing
)
