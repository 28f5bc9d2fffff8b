package metrics

import (
	"testing"
	"time"

	testutil "github.com/maximewewer/timesync/pkg/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistered(t *testing.T) (*prometheus.Registry, *SyncMetrics) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := NewSyncMetrics()
	require.NoError(t, registry.Register(m))
	return registry, m
}

func TestSyncMetrics_ObserveOffset(t *testing.T) {
	registry, m := newRegistered(t)

	m.ObserveOffset("pool.ntp.org", -1500, 40, "significant")

	testutil.AssertMetricValue(t, registry, "timesync_offset_seconds", map[string]string{"server": "pool.ntp.org"}, -1.5)
	testutil.AssertMetricValue(t, registry, "timesync_roundtrip_seconds", map[string]string{"server": "pool.ntp.org"}, 0.04)
	testutil.AssertMetricValue(t, registry, "timesync_verdicts_total", map[string]string{"verdict": "significant"}, 1)
}

func TestSyncMetrics_ObserveQuery(t *testing.T) {
	tests := []struct {
		name       string
		success    bool
		wantResult string
	}{
		{name: "success", success: true, wantResult: "success"},
		{name: "failure", success: false, wantResult: "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, m := newRegistered(t)

			m.ObserveQuery("pool.ntp.org", 3, 450*time.Millisecond, tt.success)

			testutil.AssertMetricValue(t, registry, "timesync_query_attempts", map[string]string{"server": "pool.ntp.org"}, 3)
			testutil.AssertMetricValue(t, registry, "timesync_query_duration_seconds",
				map[string]string{"server": "pool.ntp.org", "result": tt.wantResult}, 1)
		})
	}
}

func TestSyncMetrics_CountersIncrement(t *testing.T) {
	registry, m := newRegistered(t)

	m.ObserveCandidate("timeout")
	m.ObserveCandidate("timeout")
	m.ObserveCandidate("success")
	m.ObserveAdjustment("adjusted")

	testutil.AssertMetricValue(t, registry, "timesync_candidate_outcomes_total", map[string]string{"outcome": "timeout"}, 2)
	testutil.AssertMetricValue(t, registry, "timesync_candidate_outcomes_total", map[string]string{"outcome": "success"}, 1)
	testutil.AssertMetricValue(t, registry, "timesync_clock_adjustments_total", map[string]string{"result": "adjusted"}, 1)
}

func TestSyncMetrics_BuildInfo(t *testing.T) {
	registry, m := newRegistered(t)

	m.SetBuildInfo("1.2.3")

	metrics, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "timesync_build_info" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "version" && l.GetValue() == "1.2.3" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "build_info should carry the version label")
}

func TestSyncMetrics_ObserveExit(t *testing.T) {
	registry, m := newRegistered(t)

	m.ObserveExit(2, time.Unix(1_750_000_000, 0))

	testutil.AssertMetricValue(t, registry, "timesync_exit_code", map[string]string{}, 2)
	testutil.AssertMetricValue(t, registry, "timesync_last_run_timestamp_seconds", map[string]string{}, 1_750_000_000)
}
