package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatmesh"

// Collector groups the Prometheus collectors for turns and participant tasks.
// A nil *Collector is valid and records nothing.
type Collector struct {
	turnsActive    prometheus.Gauge
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	tasksTotal     *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	chunksTotal    *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	thinkingTotal  prometheus.Histogram
	eventsRejected *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns currently running",
		}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of finished turns",
		}, []string{"mode", "state"}), // state: completed, cancelled, failed
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Histogram of turn duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_tasks_total",
			Help:      "Total number of participant tasks by outcome",
		}, []string{"kind", "status"}), // status: done, error, timeout, cancelled
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "participant_task_duration_seconds",
			Help:      "Duration of participant tasks in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		chunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Total number of filtered chunks emitted",
		}, []string{"kind"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by model backends",
		}, []string{"provider", "type"}), // type: prompt, completion
		thinkingTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "thinking_duration_seconds",
			Help:      "Time participants spent inside think spans",
			Buckets:   prometheus.DefBuckets,
		}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Events dropped because they failed normalization",
		}, []string{"type"}),
	}

	if reg != nil {
		reg.MustRegister(c.collectors()...)
	}
	return c
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.turnsActive,
		c.turnsTotal,
		c.turnDuration,
		c.tasksTotal,
		c.taskDuration,
		c.chunksTotal,
		c.tokensTotal,
		c.thinkingTotal,
		c.eventsRejected,
	}
}

// TurnStarted marks a turn as running.
func (c *Collector) TurnStarted() {
	if c == nil {
		return
	}
	c.turnsActive.Inc()
}

// TurnFinished records the terminal state of a turn.
func (c *Collector) TurnFinished(mode, state string, d time.Duration) {
	if c == nil {
		return
	}
	c.turnsActive.Dec()
	c.turnsTotal.WithLabelValues(mode, state).Inc()
	c.turnDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// TaskFinished records the outcome of one participant task.
func (c *Collector) TaskFinished(kind, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(kind, status).Inc()
	c.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ChunkEmitted counts one filtered chunk.
func (c *Collector) ChunkEmitted(kind string) {
	if c == nil {
		return
	}
	c.chunksTotal.WithLabelValues(kind).Inc()
}

// Tokens records token usage reported by a backend.
func (c *Collector) Tokens(provider string, prompt, completion int) {
	if c == nil {
		return
	}
	if prompt > 0 {
		c.tokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// Thinking observes a completed think span.
func (c *Collector) Thinking(d time.Duration) {
	if c == nil {
		return
	}
	c.thinkingTotal.Observe(d.Seconds())
}

// EventRejected counts an event that failed normalization.
func (c *Collector) EventRejected(typ string) {
	if c == nil {
		return
	}
	c.eventsRejected.WithLabelValues(typ).Inc()
}
