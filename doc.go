/*
Package timewake provides a timed-wakeup scheduler for lightweight-thread
(fiber) runtimes.

Timed Wakeups (pkg/timed):
  - scheduler: single-worker scheduler resuming fibers in deadline order
  - delayqueue: multi-producer, single-consumer delay-ordered queue

Common (pkg/common):
  - errors: shared sentinel errors and structured error types
  - validation: argument and configuration validation helpers

Metrics (pkg/metrics):
  - Prometheus instrumentation for scheduler instances

Example usage:

	import (
		"github.com/vnykmshr/timewake/pkg/timed/scheduler"
	)

	sched := scheduler.New()
	defer sched.ShutdownNow()

	handle, err := sched.Schedule(fiber, 100*time.Millisecond)
	if err != nil {
		log.Fatal(err)
	}

	// Cancel if the fiber is woken by other means first.
	handle.Cancel()
*/
package timewake
