package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Selection metrics
	Resolutions      *prometheus.CounterVec
	Selections       *prometheus.CounterVec
	LoadAttempts     *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	StaleCompletions prometheus.Counter
	SandboxesActive  prometheus.Gauge

	// Control channel metrics
	ControlConnections *prometheus.CounterVec

	// Viewer stream metrics
	ViewerConnections prometheus.Gauge
	ViewerMessages    *prometheus.CounterVec

	// Recent attempt durations by kind
	Attempts *Window
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Attempts: NewWindow(100),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sketchgui_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_project_resolutions_total",
				Help: "Project name resolutions by source",
			},
			[]string{"source"},
		),
		Selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_selections_total",
				Help: "Completed content selections by outcome",
			},
			[]string{"outcome"},
		),
		LoadAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_load_attempts_total",
				Help: "Content load attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sketchgui_load_attempt_duration_seconds",
				Help:    "Content load attempt duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		StaleCompletions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sketchgui_stale_completions_total",
				Help: "Asynchronous completions dropped because a newer selection owns the session",
			},
		),
		SandboxesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sketchgui_sandboxes_active",
				Help: "Number of live sandboxes",
			},
		),

		ControlConnections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_control_connections_total",
				Help: "Control channel connection events",
			},
			[]string{"has_project"},
		),

		ViewerConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sketchgui_viewer_connections",
				Help: "Number of connected state viewers",
			},
		),
		ViewerMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sketchgui_viewer_messages_total",
				Help: "Requests received from state viewers",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordResolution records which source produced a project name
func (m *Metrics) RecordResolution(source string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source).Inc()
}

// RecordSelection records the terminal outcome of a selection
func (m *Metrics) RecordSelection(outcome string) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(outcome).Inc()
}

// RecordAttempt records one fallback chain attempt
func (m *Metrics) RecordAttempt(kind string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "succeeded"
	}
	m.LoadAttempts.WithLabelValues(kind, result).Inc()
	m.AttemptDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.Attempts.Add(kind, duration)
}

// AttemptSummaries summarizes recent attempt durations by kind
func (m *Metrics) AttemptSummaries() map[string]Summary {
	if m == nil {
		return map[string]Summary{}
	}
	return m.Attempts.Summaries()
}

// IncStale records a dropped stale completion
func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleCompletions.Inc()
}

// SetSandboxesActive sets the number of live sandboxes
func (m *Metrics) SetSandboxesActive(n int) {
	if m == nil {
		return
	}
	m.SandboxesActive.Set(float64(n))
}

// RecordControlConnection records a control channel connection event
func (m *Metrics) RecordControlConnection(hasProject bool) {
	if m == nil {
		return
	}
	label := "false"
	if hasProject {
		label = "true"
	}
	m.ControlConnections.WithLabelValues(label).Inc()
}

// IncViewers increments connected viewers
func (m *Metrics) IncViewers() {
	if m == nil {
		return
	}
	m.ViewerConnections.Inc()
}

// DecViewers decrements connected viewers
func (m *Metrics) DecViewers() {
	if m == nil {
		return
	}
	m.ViewerConnections.Dec()
}

// RecordViewerMessage records a request received from a viewer
func (m *Metrics) RecordViewerMessage(msgType string) {
	if m == nil {
		return
	}
	m.ViewerMessages.WithLabelValues(msgType).Inc()
}
