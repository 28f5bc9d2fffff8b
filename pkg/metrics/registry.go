package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry manages Prometheus metric registration
type Registry struct {
	registry    *prometheus.Registry
	syncMetrics *SyncMetrics
}

// NewRegistry creates a new metrics registry with the default namespace "timesync"
func NewRegistry() *Registry {
	return NewRegistryWithConfig("timesync", "")
}

// NewRegistryWithConfig creates a new metrics registry with custom namespace and subsystem
func NewRegistryWithConfig(namespace, subsystem string) *Registry {
	return &Registry{
		registry:    prometheus.NewRegistry(),
		syncMetrics: NewSyncMetricsWithConfig(namespace, subsystem),
	}
}

// Register registers the run metrics. Runtime collectors are left out since
// the output is a node_exporter textfile for a short-lived process.
func (r *Registry) Register() error {
	return r.registry.Register(r.syncMetrics)
}

// GetRegistry returns the underlying Prometheus registry
func (r *Registry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// GetMetrics returns the run metrics instance
func (r *Registry) GetMetrics() *SyncMetrics {
	return r.syncMetrics
}

// MustRegister registers all metrics and panics on error
func (r *Registry) MustRegister() {
	if err := r.Register(); err != nil {
		panic(err)
	}
}

// WriteTextfile atomically writes every gathered metric to path in the
// text exposition format
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
