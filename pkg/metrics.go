package addonsync

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics collects counters for one indexer run in a private registry
type RunMetrics struct {
	registry *prometheus.Registry

	filesWalked    prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    *prometheus.CounterVec
	bytesHashed    prometheus.Counter
	filesPruned    prometheus.Counter
	addonsCreated  prometheus.Counter
	addonsUpdated  prometheus.Counter
	runDuration    prometheus.Gauge
	lastSuccessful prometheus.Gauge
}

// NewRunMetrics registers the run metrics
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		filesWalked: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_files_walked_total",
			Help: "Files yielded by the tree walk",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_cache_hits_total",
			Help: "Files whose cached hash was reused",
		}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addonsync_cache_misses_total",
			Help: "Files that had to be hashed, by reason",
		}, []string{"reason"}),
		bytesHashed: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_bytes_hashed_total",
			Help: "Bytes read by the content hasher",
		}),
		filesPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_files_pruned_total",
			Help: "Cached file records dropped because the file is gone",
		}),
		addonsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_addons_created_total",
			Help: "Addons seen for the first time",
		}),
		addonsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "addonsync_addons_updated_total",
			Help: "Addons reported in the update set",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "addonsync_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastSuccessful: factory.NewGauge(prometheus.GaugeOpts{
			Name: "addonsync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// Registry exposes the private registry, for tests and custom exporters
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe copies the run's result into the metrics
func (m *RunMetrics) Observe(result *RunResult, duration time.Duration, success bool) {
	m.filesWalked.Add(float64(result.FilesWalked))
	m.cacheHits.Add(float64(result.CacheHits))
	m.cacheMisses.WithLabelValues(DecisionMiss.String()).Add(float64(result.CacheMisses))
	m.cacheMisses.WithLabelValues(DecisionChanged.String()).Add(float64(result.FilesChanged))
	m.bytesHashed.Add(float64(result.BytesHashed))
	m.filesPruned.Add(float64(result.FilesPruned))
	m.addonsCreated.Add(float64(result.AddonsCreated))
	m.addonsUpdated.Add(float64(len(result.Updates)))
	m.runDuration.Set(duration.Seconds())
	if success {
		m.lastSuccessful.Set(float64(time.Now().Unix()))
	}
}

// WriteTextfile writes the metrics in the node_exporter textfile format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
