package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Acquisition counters
	FramesRead     atomic.Uint64
	ReadErrors     atomic.Uint64
	Reconnects     atomic.Uint64
	ReadersStopped atomic.Uint64

	// Cycle counters
	CyclesCompleted atomic.Uint64
	CycleErrors     atomic.Uint64
	FramesSkipped   atomic.Uint64
	RecordErrors    atomic.Uint64
	LastTotal       atomic.Uint64
	CycleDurationMs atomic.Uint64

	// Save pool counters
	SaveJobsQueued atomic.Uint64
	SaveJobsDone   atomic.Uint64
	SaveJobsFailed atomic.Uint64

	cameraCounts *prometheus.GaugeVec

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cameraCounts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crowd_camera_count",
				Help: "Estimated people count per camera in the last cycle",
			},
			[]string{"camera"},
		),
	}

	m.registerPrometheusMetrics()

	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.cameraCounts)

	counters := []struct {
		name  string
		help  string
		value *atomic.Uint64
	}{
		{"crowd_frames_read_total", "Total frames decoded from camera streams", &m.FramesRead},
		{"crowd_read_errors_total", "Total failed frame reads", &m.ReadErrors},
		{"crowd_reconnects_total", "Total successful camera reconnections", &m.Reconnects},
		{"crowd_readers_stopped_total", "Readers stopped after exhausting retries", &m.ReadersStopped},
		{"crowd_cycles_completed_total", "Total completed capture/infer cycles", &m.CyclesCompleted},
		{"crowd_cycle_errors_total", "Total cycles that ended with an error", &m.CycleErrors},
		{"crowd_frames_skipped_total", "Cameras skipped in a cycle for lack of a usable frame", &m.FramesSkipped},
		{"crowd_record_errors_total", "Failed prediction writes to the store", &m.RecordErrors},
		{"crowd_save_jobs_queued_total", "Save jobs enqueued", &m.SaveJobsQueued},
		{"crowd_save_jobs_done_total", "Save jobs completed successfully", &m.SaveJobsDone},
		{"crowd_save_jobs_failed_total", "Save jobs that failed", &m.SaveJobsFailed},
	}
	for _, c := range counters {
		value := c.value
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(value.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowd_last_total",
			Help: "Total estimated people count of the last cycle",
		},
		func() float64 { return float64(m.LastTotal.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowd_cycle_duration_ms",
			Help: "Duration of the last cycle in milliseconds",
		},
		func() float64 { return float64(m.CycleDurationMs.Load()) },
	))
}

// ObserveCycle records the outcome of one cycle.
func (m *Metrics) ObserveCycle(perCamera map[string]int, total int, duration time.Duration) {
	m.CyclesCompleted.Add(1)
	m.LastTotal.Store(uint64(total))
	m.CycleDurationMs.Store(uint64(duration.Milliseconds()))

	m.cameraCounts.Reset()
	for camera, count := range perCamera {
		m.cameraCounts.WithLabelValues(camera).Set(float64(count))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
