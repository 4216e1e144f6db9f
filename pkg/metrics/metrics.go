// Package metrics groups the Prometheus instruments exported by memoir.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups   *prometheus.CounterVec
	HistoryAppends prometheus.Counter
	Summarizations *prometheus.CounterVec
	RecallSaves    *prometheus.CounterVec
	RecallDedups   prometheus.Counter
	RecallSearches *prometheus.CounterVec
	Tasks          *prometheus.CounterVec
	TurnLatency    prometheus.Histogram
}

// New registers every instrument on a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_cache_lookups_total",
			Help:      "Conversation loads by cache result (hit, miss, error).",
		}, []string{"result"}),
		HistoryAppends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_appended_messages_total",
			Help:      "Messages appended to conversations after filtering.",
		}),
		Summarizations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_summarizations_total",
			Help:      "Summarization checks by outcome (compacted, skipped, error).",
		}, []string{"outcome"}),
		RecallSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_saves_total",
			Help:      "Recall memory saves by outcome (queued, stored, error, dropped).",
		}, []string{"outcome"}),
		RecallDedups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_dedup_deletions_total",
			Help:      "Near-duplicate recall memories deleted on save.",
		}),
		RecallSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_searches_total",
			Help:      "Recall memory searches by status (success, empty, error).",
		}, []string{"status"}),
		Tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Background tasks by name and outcome (ok, error, dropped).",
		}, []string{"task", "outcome"}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end chat turn latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Appended(n int) {
	if m == nil {
		return
	}
	m.HistoryAppends.Add(float64(n))
}

func (m *Metrics) Summarization(outcome string) {
	if m == nil {
		return
	}
	m.Summarizations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecallSave(outcome string) {
	if m == nil {
		return
	}
	m.RecallSaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecallDedup(n int) {
	if m == nil {
		return
	}
	m.RecallDedups.Add(float64(n))
}

func (m *Metrics) RecallSearch(status string) {
	if m == nil {
		return
	}
	m.RecallSearches.WithLabelValues(status).Inc()
}

func (m *Metrics) Task(name, outcome string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) ObserveTurn(d time.Duration) {
	if m == nil {
		return
	}
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}
