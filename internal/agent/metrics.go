package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records orchestration outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	conversations *prometheus.CounterVec
	iterations    prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	engineLatency prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		conversations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itassist",
			Subsystem: "agent",
			Name:      "conversations_total",
			Help:      "Orchestration calls by outcome.",
		}, []string{"outcome"}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "itassist",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Thinking iterations consumed per orchestration call.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itassist",
			Subsystem: "agent",
			Name:      "tool_dispatches_total",
			Help:      "Tool dispatch attempts by tool and result.",
		}, []string{"tool", "result"}),
		engineLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "itassist",
			Subsystem: "agent",
			Name:      "engine_decision_seconds",
			Help:      "Latency of reasoning engine decisions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeRun(r Result) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(string(r.Outcome)).Inc()
	m.iterations.Observe(float64(r.Iterations))
}

func (m *Metrics) observeTool(tool, result string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) observeEngine(d time.Duration) {
	if m == nil {
		return
	}
	m.engineLatency.Observe(d.Seconds())
}
