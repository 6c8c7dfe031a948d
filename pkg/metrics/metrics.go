package metrics

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/shirou/gopsutil/v3/mem"
)

const namespace = "lumirender"

// modes in gauge order; the mode gauge reports the index
var modes = []models.Mode{
	models.ModeStopped,
	models.ModeInteractive,
	models.ModeRecording,
	models.ModeRendering,
}

// SchedulerMetrics exports render scheduler activity on its own registry
type SchedulerMetrics struct {
	registry *prometheus.Registry

	jobsEnqueued   *prometheus.CounterVec
	jobsDiscarded  *prometheus.CounterVec
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	framesStored   *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	mode           *prometheus.GaugeVec
	drains         prometheus.Counter
}

// NewSchedulerMetrics creates and registers the scheduler metrics
func NewSchedulerMetrics() *SchedulerMetrics {
	m := &SchedulerMetrics{
		registry: prometheus.NewRegistry(),
		jobsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_enqueued_total",
				Help:      "Frame jobs submitted to the queue",
			},
			[]string{"tag"},
		),
		jobsDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_discarded_total",
				Help:      "Frame jobs dropped without rendering",
			},
			[]string{"reason"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Renders finished by the worker",
			},
			[]string{"tag", "result"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Time spent in the render backend per job",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"tag"},
		),
		framesStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_stored_total",
				Help:      "Frames written to a frame store",
			},
			[]string{"store"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_store_errors_total",
				Help:      "Failed frame store writes",
			},
			[]string{"store"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the scheduler queue",
		}),
		mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mode",
				Help:      "Current scheduler mode (1 for the active mode)",
			},
			[]string{"mode"},
		),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drains_completed_total",
			Help:      "Rendering drains that finished and returned to interactive",
		}),
	}

	m.registry.MustRegister(
		m.jobsEnqueued,
		m.jobsDiscarded,
		m.renders,
		m.renderDuration,
		m.framesStored,
		m.storeErrors,
		m.queueDepth,
		m.mode,
		m.drains,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_memory_used_percent",
			Help:      "Host memory in use, as reported by the OS",
		}, hostMemoryUsedPercent),
	)

	m.ModeChanged(models.ModeStopped)
	return m
}

func hostMemoryUsedPercent() float64 {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vmem.UsedPercent
}

// Registry returns the private registry, for tests and extra collectors
func (m *SchedulerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchProgress exports fn as the render progress gauge
func (m *SchedulerMetrics) WatchProgress(fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_percent",
		Help:      "Progress of the current render or drain",
	}, fn))
}

// JobEnqueued counts a submitted job by its tag
func (m *SchedulerMetrics) JobEnqueued(tag models.Mode) {
	m.jobsEnqueued.WithLabelValues(string(tag)).Inc()
}

// JobsDiscarded counts jobs released without rendering
func (m *SchedulerMetrics) JobsDiscarded(reason string, n int) {
	if n <= 0 {
		return
	}
	m.jobsDiscarded.WithLabelValues(reason).Add(float64(n))
}

// RenderFinished records one backend call
func (m *SchedulerMetrics) RenderFinished(tag models.Mode, result string, d time.Duration) {
	m.renders.WithLabelValues(string(tag), result).Inc()
	m.renderDuration.WithLabelValues(string(tag)).Observe(d.Seconds())
}

// FrameStored counts a successful frame store write
func (m *SchedulerMetrics) FrameStored(store string) {
	m.framesStored.WithLabelValues(store).Inc()
}

// StoreError counts a failed frame store write
func (m *SchedulerMetrics) StoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// QueueDepth sets the queue length gauge
func (m *SchedulerMetrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ModeChanged sets the active mode to 1 and every other mode to 0
func (m *SchedulerMetrics) ModeChanged(mode models.Mode) {
	for _, candidate := range modes {
		v := 0.0
		if candidate == mode {
			v = 1
		}
		m.mode.WithLabelValues(string(candidate)).Set(v)
	}
}

// DrainCompleted counts a finished rendering drain
func (m *SchedulerMetrics) DrainCompleted() {
	m.drains.Inc()
}

// Handler returns HTTP handler for Prometheus metrics
func (m *SchedulerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes every registered metric in the Prometheus text format
func (m *SchedulerMetrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
