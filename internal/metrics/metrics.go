// Package metrics exposes Prometheus counters for the enhancement pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values.
const (
	ResultRendered  = "rendered"
	ResultError     = "error"
	ResultSkipped   = "skipped"
	ResultDropped   = "dropped"
	ResultReady     = "ready"
	ResultFailed    = "failed"
	ResultLoaded    = "loaded"
	ResultCached    = "cached"
	ResultModified  = "modified"
	ResultUnchanged = "unchanged"
)

// Collector groups the pipeline counters. A nil *Collector is valid and
// records nothing.
type Collector struct {
	formulas      *prometheus.CounterVec
	diagrams      *prometheus.CounterVec
	diagramTime   prometheus.Histogram
	activations   *prometheus.CounterVec
	resourceLoads *prometheus.CounterVec
	messages      *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// A nil reg leaves the counters unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		formulas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "msgenhance",
				Name:      "formulas_total",
				Help:      "Math spans processed, by result.",
			},
			[]string{"result"},
		),
		diagrams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "msgenhance",
				Name:      "diagrams_total",
				Help:      "Diagram render tasks completed, by result.",
			},
			[]string{"result"},
		),
		diagramTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "msgenhance",
				Name:      "diagram_render_seconds",
				Help:      "Duration of diagram engine render calls.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "msgenhance",
				Name:      "activations_total",
				Help:      "Renderer activation attempts, by renderer and result.",
			},
			[]string{"renderer", "result"},
		),
		resourceLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "msgenhance",
				Name:      "resource_loads_total",
				Help:      "Resource ensure calls, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "msgenhance",
				Name:      "messages_total",
				Help:      "Hook invocations, by result.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(c.formulas, c.diagrams, c.diagramTime, c.activations, c.resourceLoads, c.messages)
	}
	return c
}

// Formula records one processed math span.
func (c *Collector) Formula(result string) {
	if c == nil {
		return
	}
	c.formulas.WithLabelValues(result).Inc()
}

// Diagram records one finished diagram task.
func (c *Collector) Diagram(result string) {
	if c == nil {
		return
	}
	c.diagrams.WithLabelValues(result).Inc()
}

// DiagramDuration records the time spent in one engine render call.
func (c *Collector) DiagramDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.diagramTime.Observe(d.Seconds())
}

// Activation records one activation attempt.
func (c *Collector) Activation(renderer, result string) {
	if c == nil {
		return
	}
	c.activations.WithLabelValues(renderer, result).Inc()
}

// ResourceLoad records one ensure call for a stylesheet or script.
func (c *Collector) ResourceLoad(kind, result string) {
	if c == nil {
		return
	}
	c.resourceLoads.WithLabelValues(kind, result).Inc()
}

// Message records one hook invocation.
func (c *Collector) Message(result string) {
	if c == nil {
		return
	}
	c.messages.WithLabelValues(result).Inc()
}
