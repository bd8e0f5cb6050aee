// Package metrics provides Prometheus instrumentation for timewake components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for timewake components.
type Registry struct {
	// Scheduler metrics
	TasksScheduled *prometheus.CounterVec
	TasksFired     *prometheus.CounterVec
	TasksSkipped   *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksDrained   *prometheus.CounterVec
	WakeLatency    *prometheus.HistogramVec
	PendingTasks   *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by timewake components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "tasks_scheduled_total",
				Help:      "Total number of timed wakeups scheduled",
			},
			[]string{"scheduler_name"},
		),

		TasksFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "tasks_fired_total",
				Help:      "Total number of wakeups fired by the worker",
			},
			[]string{"scheduler_name"},
		),

		TasksSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "tasks_skipped_total",
				Help:      "Total number of wakeups skipped because they were cancelled",
			},
			[]string{"scheduler_name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "tasks_rejected_total",
				Help:      "Total number of schedule attempts rejected after shutdown",
			},
			[]string{"scheduler_name"},
		),

		TasksDrained: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "tasks_drained_total",
				Help:      "Total number of pending wakeups removed by forced shutdown",
			},
			[]string{"scheduler_name"},
		),

		WakeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "wake_latency_seconds",
				Help:      "Difference between actual and requested fire time (positive means late)",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"scheduler_name"},
		),

		PendingTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "timewake",
				Subsystem: "scheduler",
				Name:      "pending_tasks",
				Help:      "Number of wakeups currently queued",
			},
			[]string{"scheduler_name"},
		),
	}
}
