package metrics

import (
	"runtime"
	"time"

	"github.com/maximewewer/timesync/pkg/mathutil"
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics encapsulates the metrics of one synchronization run
type SyncMetrics struct {
	// Measurement
	OffsetSeconds    *prometheus.GaugeVec
	RoundtripSeconds *prometheus.GaugeVec
	VerdictsTotal    *prometheus.CounterVec

	// Query
	QueryAttempts          *prometheus.GaugeVec
	QueryDurationSeconds   *prometheus.HistogramVec
	CandidateOutcomesTotal *prometheus.CounterVec

	// Clock
	ClockAdjustmentsTotal *prometheus.CounterVec

	// Run
	BuildInfo               *prometheus.GaugeVec
	ExitCode                prometheus.Gauge
	LastRunTimestampSeconds prometheus.Gauge
}

// NewSyncMetricsWithConfig creates all metrics with custom namespace and subsystem
func NewSyncMetricsWithConfig(namespace, subsystem string) *SyncMetrics {
	return &SyncMetrics{
		OffsetSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "offset_seconds",
				Help:      "Offset of the server clock relative to the local clock in seconds",
			},
			[]string{"server"},
		),
		RoundtripSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "roundtrip_seconds",
				Help:      "Round-trip time of the successful exchange in seconds",
			},
			[]string{"server"},
		),
		VerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verdicts_total",
				Help:      "Offset classifications by verdict",
			},
			[]string{"verdict"},
		),
		QueryAttempts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_attempts",
				Help:      "Number of attempts the last query used",
			},
			[]string{"server"},
		),
		QueryDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_duration_seconds",
				Help:      "Duration of the whole query including retries",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"server", "result"},
		),
		CandidateOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "candidate_outcomes_total",
				Help:      "Per-address exchange outcomes",
			},
			[]string{"outcome"},
		),
		ClockAdjustmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "clock_adjustments_total",
				Help:      "Clock steering decisions by result",
			},
			[]string{"result"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "goversion"},
		),
		ExitCode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "exit_code",
				Help:      "Exit status of the last run",
			},
		),
		LastRunTimestampSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
}

// NewSyncMetrics creates all metrics with the default namespace
func NewSyncMetrics() *SyncMetrics {
	return NewSyncMetricsWithConfig("timesync", "")
}

// SetBuildInfo publishes the running version
func (m *SyncMetrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// ObserveCandidate counts one per-address outcome
func (m *SyncMetrics) ObserveCandidate(outcome string) {
	m.CandidateOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuery records a finished query
func (m *SyncMetrics) ObserveQuery(server string, attempts int, duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.QueryAttempts.WithLabelValues(server).Set(float64(attempts))
	m.QueryDurationSeconds.WithLabelValues(server, result).Observe(duration.Seconds())
}

// ObserveOffset records a computed offset and its verdict
func (m *SyncMetrics) ObserveOffset(server string, offsetMs, roundtripMs int64, verdict string) {
	m.OffsetSeconds.WithLabelValues(server).Set(mathutil.MillisToSeconds(offsetMs))
	m.RoundtripSeconds.WithLabelValues(server).Set(mathutil.MillisToSeconds(roundtripMs))
	m.VerdictsTotal.WithLabelValues(verdict).Inc()
}

// ObserveAdjustment counts a steering decision
func (m *SyncMetrics) ObserveAdjustment(result string) {
	m.ClockAdjustmentsTotal.WithLabelValues(result).Inc()
}

// ObserveExit records the exit status and finish time
func (m *SyncMetrics) ObserveExit(code int, at time.Time) {
	m.ExitCode.Set(float64(code))
	m.LastRunTimestampSeconds.Set(float64(at.Unix()))
}

// getAllMetrics returns all metric collectors
func (m *SyncMetrics) getAllMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		m.OffsetSeconds,
		m.RoundtripSeconds,
		m.VerdictsTotal,
		m.QueryAttempts,
		m.QueryDurationSeconds,
		m.CandidateOutcomesTotal,
		m.ClockAdjustmentsTotal,
		m.BuildInfo,
		m.ExitCode,
		m.LastRunTimestampSeconds,
	}
}

// Describe implements prometheus.Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range m.getAllMetrics() {
		metric.Describe(ch)
	}
}

// Collect implements prometheus.Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, metric := range m.getAllMetrics() {
		metric.Collect(ch)
	}
}
