// Package metrics provides Prometheus instrumentation for timewake components.
//
// This package enables monitoring and observability for the timed-wakeup
// scheduler through Prometheus metrics.
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	sched := scheduler.NewWithMetrics("fiber_timer")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	sched := scheduler.NewWithConfigAndMetrics(
//		scheduler.Config{Name: "fiber_timer"},
//		"fiber_timer",
//		config,
//	)
//
// # Available Metrics
//
//   - timewake_scheduler_tasks_scheduled_total: Total number of timed wakeups scheduled
//   - timewake_scheduler_tasks_fired_total: Total number of wakeups fired by the worker
//   - timewake_scheduler_tasks_skipped_total: Total number of wakeups skipped because they were cancelled
//   - timewake_scheduler_tasks_rejected_total: Total number of schedule attempts rejected after shutdown
//   - timewake_scheduler_tasks_drained_total: Total number of pending wakeups removed by forced shutdown
//   - timewake_scheduler_wake_latency_seconds: Difference between actual and requested fire time
//   - timewake_scheduler_pending_tasks: Number of wakeups currently queued
//
// All metrics carry a scheduler_name label identifying the instance.
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	sched := scheduler.NewWithMetrics("fiber_timer")
//	sched.DisableMetrics()
//	sched.EnableMetrics(config)
//	enabled := sched.MetricsEnabled()
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Metrics are updated only when operations occur
//   - No background goroutines or timers
//   - Conditional metrics updates based on enabled state
package metrics
