// Package metrics counts scan activity with Prometheus collectors and
// writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/idelchi/fileinsights/internal/record"
)

const namespace = "fileinsights"

// Collector holds the scan metrics on a private registry, so several
// collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	files     *prometheus.CounterVec
	bytes     prometheus.Counter
	warnings  prometheus.Counter
	persisted prometheus.Counter
	duration  prometheus.Gauge
	lastRun   prometheus.Gauge
}

// New registers the scan metrics on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files recorded, by kind.",
		}, []string{"kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Sum of recorded file sizes in bytes.",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_warnings_total",
			Help:      "Directories skipped because they could not be read.",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Records committed to the store.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	c.registry.MustRegister(c.files, c.bytes, c.warnings, c.persisted, c.duration, c.lastRun)

	// Pre-create every kind so all series are present even when zero.
	for _, k := range []record.Kind{record.KindRegular, record.KindVideo, record.KindUnreadable} {
		c.files.WithLabelValues(string(k))
	}

	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe counts one record. Methods of a nil Collector do nothing.
func (c *Collector) Observe(r record.FileRecord) {
	if c == nil {
		return
	}

	c.files.WithLabelValues(string(r.Kind)).Inc()
	c.bytes.Add(float64(r.SizeBytes))
}

// Warnings counts skipped directories.
func (c *Collector) Warnings(n int) {
	if c == nil {
		return
	}

	c.warnings.Add(float64(n))
}

// Persisted counts committed records.
func (c *Collector) Persisted(n int64) {
	if c == nil {
		return
	}

	c.persisted.Add(float64(n))
}

// Finish records the run duration and completion time.
func (c *Collector) Finish(started, finished time.Time) {
	if c == nil {
		return
	}

	c.duration.Set(finished.Sub(started).Seconds())
	c.lastRun.Set(float64(finished.Unix()))
}

// WriteFile writes the metrics to path in the textfile collector format.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}

	return nil
}
