package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	twerrors "github.com/vnykmshr/timewake/pkg/common/errors"
	"github.com/vnykmshr/timewake/pkg/common/validation"
	"github.com/vnykmshr/timewake/pkg/timed/delayqueue"
)

// Lifecycle states. The state only ever moves forward.
const (
	stateAccepting int32 = iota
	stateDraining
	stateStopping
	stateTerminated
)

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// WorkerFactory spawns the scheduler's single worker execution context.
// It is invoked exactly once, at construction.
type WorkerFactory func(name string, work func())

// Scheduler wakes suspended fibers at requested times. Any number of
// goroutines may schedule wakeups; one dedicated worker, started at
// construction, fires them in deadline order.
type Scheduler interface {
	// Schedule arranges for fiber to be resumed no earlier than delay
	// from now. Negative delays are treated as zero. It returns a
	// cancellable handle, a ValidationError for a nil fiber, or an error
	// wrapping ErrRejected once shutdown has begun.
	Schedule(fiber Fiber, delay time.Duration) (Handle, error)

	// Shutdown begins a graceful shutdown: no new wakeups are accepted,
	// but already-queued ones still fire at their deadlines. Idempotent.
	// It does not wait; use AwaitTermination for that.
	Shutdown()

	// ShutdownNow halts the worker and atomically removes all wakeups
	// that have not started firing, returning their target fibers. None
	// of the returned fibers will be resumed by the scheduler. Best
	// effort: a wakeup already being fired is not halted.
	ShutdownNow() []Fiber

	// AwaitTermination blocks until the worker has exited or the timeout
	// elapses, and reports whether termination happened in time. It does
	// not itself request shutdown.
	AwaitTermination(timeout time.Duration) bool

	// IsShutdown reports whether shutdown has begun.
	IsShutdown() bool

	// IsTerminated reports whether the worker has exited.
	IsTerminated() bool
}

// Config holds scheduler configuration.
type Config struct {
	// Name identifies the scheduler in worker names. If empty, a
	// process-wide sequence number is used.
	Name string

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// WorkerFactory spawns the worker execution context. If nil, a
	// plain goroutine is started.
	WorkerFactory WorkerFactory

	// OnPanic is called when resuming a fiber panics. The panic is
	// swallowed either way; the worker keeps running.
	OnPanic func(fiber Fiber, recovered interface{})

	// OnFire is called after the worker consumes a wakeup. skipped
	// reports whether the wakeup was dropped because it had been
	// cancelled.
	OnFire func(fiber Fiber, skipped bool)
}

// nameSequence numbers unnamed schedulers process-wide.
var nameSequence atomic.Uint64

type scheduler struct {
	name    string
	clock   Clock
	epoch   time.Time
	queue   *delayqueue.Queue
	onPanic func(Fiber, interface{})
	onFire  func(Fiber, bool)

	// sequencer breaks scheduling ties, guaranteeing FIFO order among
	// wakeups with equal deadlines.
	sequencer atomic.Uint64

	state atomic.Int32
	mu    sync.Mutex // serializes lifecycle transitions

	// acceptCtx interrupts the worker's blocking wait while accepting;
	// drainCtx interrupts it while draining. Both cancel on ShutdownNow,
	// only the first on Shutdown.
	acceptCtx    context.Context
	cancelAccept context.CancelFunc
	drainCtx     context.Context
	cancelDrain  context.CancelFunc

	terminated chan struct{}
}

// New creates a scheduler with default configuration and starts its worker.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration and starts
// its worker.
func NewWithConfig(cfg Config) Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("timed-scheduler-%d", nameSequence.Add(1))
	}

	factory := cfg.WorkerFactory
	if factory == nil {
		factory = func(_ string, work func()) { go work() }
	}

	acceptCtx, cancelAccept := context.WithCancel(context.Background())
	drainCtx, cancelDrain := context.WithCancel(context.Background())

	s := &scheduler{
		name:         name,
		clock:        clock,
		epoch:        clock.Now(),
		queue:        delayqueue.New(),
		onPanic:      cfg.OnPanic,
		onFire:       cfg.OnFire,
		acceptCtx:    acceptCtx,
		cancelAccept: cancelAccept,
		drainCtx:     drainCtx,
		cancelDrain:  cancelDrain,
		terminated:   make(chan struct{}),
	}

	factory(name+"-worker", s.work)
	return s
}

// now returns nanoseconds elapsed on the scheduler's timeline.
func (s *scheduler) now() int64 {
	return int64(s.clock.Now().Sub(s.epoch))
}

func (s *scheduler) Schedule(fiber Fiber, delay time.Duration) (Handle, error) {
	if err := validation.ValidateNotNil("scheduler", "fiber", fiber); err != nil {
		return nil, err
	}

	if s.IsShutdown() {
		return nil, twerrors.NewOperationError("scheduler", "Schedule", twerrors.ErrRejected).
			WithContext("scheduler " + s.name + " is shutting down")
	}

	t := &task{
		sched:    s,
		fiber:    fiber,
		deadline: s.triggerTime(delay),
		seq:      s.sequencer.Add(1),
	}
	s.queue.Add(t)
	return t, nil
}

// triggerTime converts a requested delay into an absolute deadline on the
// scheduler's timeline. Negative delays are clamped to zero; delays large
// enough to wrap the integer range are constrained by overflowFree.
func (s *scheduler) triggerTime(delay time.Duration) int64 {
	d := int64(delay)
	if d < 0 {
		d = 0
	}
	if d >= math.MaxInt64>>1 {
		d = s.overflowFree(d)
	}
	return s.now() + d
}

// overflowFree constrains all delays in the queue to be within MaxInt64 of
// each other, so the ordering comparison cannot wrap. This can matter when
// the head wakeup is overdue but not yet dequeued while a new wakeup arrives
// with a near-infinite delay. The clamped deadline no longer equals the
// literal requested delay, but ordering among pending wakeups stays
// consistent.
func (s *scheduler) overflowFree(delay int64) int64 {
	if head := s.queue.Peek(); head != nil {
		headDelay := int64(head.Remaining())
		if headDelay < 0 && delay-headDelay < 0 {
			delay = math.MaxInt64 + headDelay
		}
	}
	return delay
}

func (s *scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance(stateDraining)
	s.cancelAccept()
}

func (s *scheduler) ShutdownNow() []Fiber {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance(stateStopping)
	s.cancelAccept()
	s.cancelDrain()

	drained := s.queue.Drain()
	fibers := make([]Fiber, 0, len(drained))
	for _, item := range drained {
		fibers = append(fibers, item.(*task).fiber)
	}
	return fibers
}

func (s *scheduler) AwaitTermination(timeout time.Duration) bool {
	select {
	case <-s.terminated:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *scheduler) IsShutdown() bool {
	return s.state.Load() >= stateDraining
}

func (s *scheduler) IsTerminated() bool {
	select {
	case <-s.terminated:
		return true
	default:
		return false
	}
}

// advance moves the lifecycle forward to at least target. It never regresses.
func (s *scheduler) advance(target int32) {
	for {
		cur := s.state.Load()
		if cur >= target {
			return
		}
		if s.state.CompareAndSwap(cur, target) {
			return
		}
	}
}

// work is the single consumer loop. Whatever the exit path, the scheduler
// reaches the terminated state.
func (s *scheduler) work() {
	defer func() {
		s.advance(stateTerminated)
		close(s.terminated)
	}()

	for s.state.Load() == stateAccepting {
		item, err := s.queue.Take(s.acceptCtx)
		if err != nil {
			// Shutdown began; the loop condition picks the next phase.
			continue
		}
		item.(*task).run()
	}

	// Graceful shutdown: fire already-queued wakeups at their deadlines
	// until the queue empties or a forced stop intervenes.
	if s.state.Load() == stateDraining {
		for s.state.Load() == stateDraining && !s.queue.IsEmpty() {
			item, err := s.queue.Take(s.drainCtx)
			if err != nil {
				break
			}
			item.(*task).run()
		}
	}
}
