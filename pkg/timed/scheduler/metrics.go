package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/timewake/pkg/metrics"
)

// MetricsScheduler wraps a Scheduler with Prometheus metrics collection.
type MetricsScheduler struct {
	sched    Scheduler
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a scheduler with metrics enabled.
func NewWithMetrics(name string) *MetricsScheduler {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{Name: name}, name, config)
}

// NewWithConfigAndMetrics creates a scheduler with custom config and metrics.
func NewWithConfigAndMetrics(cfg Config, name string, metricsConfig metrics.Config) *MetricsScheduler {
	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	ms := &MetricsScheduler{
		name:     name,
		registry: registry,
		enabled:  metricsConfig.Enabled,
	}

	// Observe every consumed wakeup, chaining any caller-provided hook.
	userOnFire := cfg.OnFire
	cfg.OnFire = func(fiber Fiber, skipped bool) {
		ms.observeFire(skipped)
		if userOnFire != nil {
			userOnFire(fiber, skipped)
		}
	}

	ms.sched = NewWithConfig(cfg)
	return ms
}

func (ms *MetricsScheduler) observeFire(skipped bool) {
	if !ms.enabled {
		return
	}

	if skipped {
		ms.registry.TasksSkipped.WithLabelValues(ms.name).Inc()
	} else {
		ms.registry.TasksFired.WithLabelValues(ms.name).Inc()
	}
	ms.registry.PendingTasks.WithLabelValues(ms.name).Dec()
}

// Schedule arranges a wakeup and records scheduling metrics.
func (ms *MetricsScheduler) Schedule(fiber Fiber, delay time.Duration) (Handle, error) {
	target := fiber
	if ms.enabled && fiber != nil {
		target = &metricsFiber{original: fiber, ms: ms}
	}

	handle, err := ms.sched.Schedule(target, delay)
	if ms.enabled {
		if err != nil {
			ms.registry.TasksRejected.WithLabelValues(ms.name).Inc()
		} else {
			ms.registry.TasksScheduled.WithLabelValues(ms.name).Inc()
			ms.registry.PendingTasks.WithLabelValues(ms.name).Inc()
		}
	}
	return handle, err
}

// Shutdown begins a graceful shutdown of the underlying scheduler.
func (ms *MetricsScheduler) Shutdown() {
	ms.sched.Shutdown()
}

// ShutdownNow halts the underlying scheduler and returns the fibers whose
// wakeups never fired, unwrapped from their instrumentation.
func (ms *MetricsScheduler) ShutdownNow() []Fiber {
	fibers := ms.sched.ShutdownNow()

	out := make([]Fiber, len(fibers))
	for i, f := range fibers {
		if mf, ok := f.(*metricsFiber); ok {
			out[i] = mf.original
		} else {
			out[i] = f
		}
	}

	if ms.enabled {
		ms.registry.TasksDrained.WithLabelValues(ms.name).Add(float64(len(out)))
		ms.registry.PendingTasks.WithLabelValues(ms.name).Sub(float64(len(out)))
	}
	return out
}

// AwaitTermination blocks until the worker exits or the timeout elapses.
func (ms *MetricsScheduler) AwaitTermination(timeout time.Duration) bool {
	return ms.sched.AwaitTermination(timeout)
}

// IsShutdown reports whether shutdown has begun.
func (ms *MetricsScheduler) IsShutdown() bool {
	return ms.sched.IsShutdown()
}

// IsTerminated reports whether the worker has exited.
func (ms *MetricsScheduler) IsTerminated() bool {
	return ms.sched.IsTerminated()
}

// EnableMetrics enables metrics collection.
func (ms *MetricsScheduler) EnableMetrics(config metrics.Config) error {
	ms.enabled = config.Enabled

	if config.Registry != nil {
		ms.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (ms *MetricsScheduler) DisableMetrics() {
	ms.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ms *MetricsScheduler) MetricsEnabled() bool {
	return ms.enabled
}

var (
	_ Scheduler              = (*MetricsScheduler)(nil)
	_ metrics.Instrumentable = (*MetricsScheduler)(nil)
)

// metricsFiber instruments a fiber with wake-latency observation while
// forwarding any monitor the original fiber carries.
type metricsFiber struct {
	original Fiber
	ms       *MetricsScheduler
}

func (f *metricsFiber) Resume() error {
	return f.original.Resume()
}

// Monitor returns the fiber itself; it observes the latency histogram and
// chains to the original fiber's monitor when present.
func (f *metricsFiber) Monitor() Monitor {
	return f
}

func (f *metricsFiber) RecordWaitLatency(lag time.Duration) {
	if f.ms.enabled {
		f.ms.registry.WakeLatency.WithLabelValues(f.ms.name).Observe(lag.Seconds())
	}
	if m, ok := f.original.(Monitored); ok {
		if mon := m.Monitor(); mon != nil {
			mon.RecordWaitLatency(lag)
		}
	}
}
