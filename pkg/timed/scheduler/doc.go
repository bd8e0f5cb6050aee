/*
Package scheduler provides a timed-wakeup scheduler for lightweight-thread
(fiber) runtimes.

Any number of goroutines may request that a suspended fiber be resumed no
earlier than some delay from now. A single dedicated worker, started when the
scheduler is constructed, consumes the pending wakeups in deadline order and
fires them. Wakeups with equal deadlines fire in submission order.

Basic Usage:

	sched := scheduler.New()

	handle, err := sched.Schedule(fiber, 100*time.Millisecond)
	if err != nil {
		log.Fatal(err)
	}

	// Later, if the fiber was woken by other means:
	handle.Cancel()

	sched.Shutdown()
	sched.AwaitTermination(time.Second)

The fiber is opaque to the scheduler beyond its Resume method. Fibers that
also implement Monitored get their wake latency reported on every fire.

Cancellation:

Cancellation is advisory. Cancel marks the wakeup and reports success without
touching the queue; the worker skips cancelled wakeups when their deadline
arrives. A wakeup that already fired is unaffected, so callers must treat
Cancel as "prevent if not yet started", never as a guarantee.

Handles exist only for cancellation. Await and Done fail with ErrUnsupported;
waiting for a wakeup to complete is not part of the contract.

Lifecycle:

The scheduler moves through four forward-only states: accepting, draining,
stopping, terminated.

	sched.Shutdown()      // stop accepting; queued wakeups still fire
	sched.ShutdownNow()   // stop accepting and return unfired wakeups

Shutdown is graceful: wakeups queued before the call fire at their deadlines,
in order, and the scheduler terminates once the queue empties. ShutdownNow
interrupts the worker and drains the queue, returning the target fibers that
will never be resumed. Both are safe to call from any goroutine, repeatedly.

Error Handling:

Schedule reports a ValidationError for a nil fiber and an error wrapping
ErrRejected once shutdown has begun. Failures while resuming a fiber are
swallowed by the worker: one fiber's failure never halts the scheduler or
affects unrelated wakeups. Use Config.OnPanic to observe panics from Resume.

Metrics:

NewWithMetrics and NewWithConfigAndMetrics wrap the scheduler with Prometheus
instrumentation; see the metrics package for the exposed series.
*/
package scheduler
