package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	twerrors "github.com/vnykmshr/timewake/pkg/common/errors"
	"github.com/vnykmshr/timewake/pkg/timed/delayqueue"
)

// Fiber is the suspended lightweight thread this scheduler wakes. The
// scheduler holds only a reference; it never owns the fiber's lifecycle.
type Fiber interface {
	// Resume wakes the suspended fiber. Errors are swallowed by the
	// worker: a failed resume must never stop the scheduler.
	Resume() error
}

// Monitor receives observability callbacks for fired wakeups.
type Monitor interface {
	// RecordWaitLatency is called with the difference between actual and
	// requested fire time. Positive values mean the wakeup fired late.
	RecordWaitLatency(lag time.Duration)
}

// Monitored is implemented by fibers that expose a Monitor. A nil Monitor
// return disables the callback for that fiber.
type Monitored interface {
	Monitor() Monitor
}

// Handle allows cancelling a scheduled wakeup.
//
// Completion-style operations are deliberately not part of the contract:
// callers only ever use a handle to cancel. Await and Done exist so that
// misuse fails loudly with ErrUnsupported instead of silently misbehaving.
type Handle interface {
	// Cancel marks the wakeup as cancelled and reports success. It never
	// removes the entry from the queue; the worker skips cancelled
	// wakeups when their deadline arrives. Cancellation is advisory: a
	// wakeup that already fired is unaffected, and Cancel still reports
	// success.
	Cancel() bool

	// IsCancelled reports whether Cancel has been called.
	IsCancelled() bool

	// Await always fails with an error wrapping errors.ErrUnsupported.
	Await(ctx context.Context) error

	// Done always fails with an error wrapping errors.ErrUnsupported.
	Done() (bool, error)
}

// task is a single scheduled wakeup: the target fiber, an absolute deadline
// on the scheduler's timeline, and a sequence number breaking deadline ties
// FIFO.
type task struct {
	sched     *scheduler
	fiber     Fiber
	deadline  int64 // nanoseconds on the scheduler's timeline
	seq       uint64
	cancelled atomic.Bool
}

var (
	_ Handle             = (*task)(nil)
	_ delayqueue.Delayed = (*task)(nil)
)

// Remaining reports the time left until the wakeup is due.
func (t *task) Remaining() time.Duration {
	return time.Duration(t.deadline - t.sched.now())
}

// Before orders tasks by deadline, breaking ties by submission sequence.
// The subtraction keeps the comparison consistent even when a clamped
// deadline sits near the top of the integer range.
func (t *task) Before(other delayqueue.Delayed) bool {
	o := other.(*task)
	if diff := t.deadline - o.deadline; diff != 0 {
		return diff < 0
	}
	return t.seq < o.seq
}

// run fires the wakeup. Invoked only by the worker, at most once per task.
func (t *task) run() {
	skipped := t.cancelled.Load()

	defer func() {
		if r := recover(); r != nil && t.sched.onPanic != nil {
			t.sched.onPanic(t.fiber, r)
		}
		if t.sched.onFire != nil {
			t.sched.onFire(t.fiber, skipped)
		}
	}()

	if skipped {
		return
	}

	if m, ok := t.fiber.(Monitored); ok {
		if mon := m.Monitor(); mon != nil {
			mon.RecordWaitLatency(time.Duration(t.sched.now() - t.deadline))
		}
	}

	_ = t.fiber.Resume()
}

func (t *task) Cancel() bool {
	t.cancelled.Store(true)
	return true
}

func (t *task) IsCancelled() bool {
	return t.cancelled.Load()
}

func (t *task) Await(_ context.Context) error {
	return twerrors.NewOperationError("scheduler", "Await", twerrors.ErrUnsupported).
		WithContext("handles are cancel-only")
}

func (t *task) Done() (bool, error) {
	return false, twerrors.NewOperationError("scheduler", "Done", twerrors.ErrUnsupported).
		WithContext("handles are cancel-only")
}
