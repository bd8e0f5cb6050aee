/*
Package timed provides the timed-wakeup primitives of the timewake library.

Two components cooperate to wake suspended fibers at requested times:

  - delayqueue: a delay-ordered queue for many producers and one consumer
  - scheduler: the lifecycle, worker loop and public scheduling API

Scheduler:

The scheduler wakes fibers after a requested delay:

	sched := scheduler.New()
	defer sched.ShutdownNow()

	handle, err := sched.Schedule(fiber, 50*time.Millisecond)
	if err != nil {
		return err
	}

	// Retract the wakeup if the fiber was woken elsewhere.
	handle.Cancel()

Delay Queue:

The queue is useful on its own wherever one goroutine consumes deadline-ordered
work fed by many producers:

	q := delayqueue.New()
	q.Add(item)               // any goroutine
	item, err := q.Take(ctx)  // the single consumer

Both components are safe for concurrent producers; consumption is strictly
single-threaded by design.
*/
package timed
