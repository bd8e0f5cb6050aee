package scheduler

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/timewake/internal/testutil"
	twerrors "github.com/vnykmshr/timewake/pkg/common/errors"
)

// testFiber records resumes and optionally reports each fire on a channel.
type testFiber struct {
	name    string
	resumes int32
	fired   chan string
}

func (f *testFiber) Resume() error {
	atomic.AddInt32(&f.resumes, 1)
	if f.fired != nil {
		f.fired <- f.name
	}
	return nil
}

func (f *testFiber) resumed() int32 {
	return atomic.LoadInt32(&f.resumes)
}

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	fired := make(chan string, 3)
	a := &testFiber{name: "a", fired: fired}
	b := &testFiber{name: "b", fired: fired}
	c := &testFiber{name: "c", fired: fired}

	// a has the latest deadline; b and c share a delay, b submitted first.
	if _, err := s.Schedule(a, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(b, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(c, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"b", "c", "a"} {
		select {
		case got := <-fired:
			testutil.AssertEqual(t, got, want)
		case <-time.After(time.Second):
			t.Fatalf("wakeup %q did not fire in time", want)
		}
	}
}

func TestScheduler_NoPrematureFiring(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	const delay = 80 * time.Millisecond
	fired := make(chan time.Time, 1)
	f := fireTimeFiber{fired: fired}

	start := time.Now()
	if _, err := s.Schedule(f, delay); err != nil {
		t.Fatal(err)
	}

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < delay-5*time.Millisecond {
			t.Errorf("fired after %v, before the requested %v", elapsed, delay)
		}
	case <-time.After(time.Second):
		t.Fatal("wakeup never fired")
	}
}

type fireTimeFiber struct {
	fired chan time.Time
}

func (f fireTimeFiber) Resume() error {
	f.fired <- time.Now()
	return nil
}

func TestScheduler_CancelPreventsResume(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	f := &testFiber{name: "victim"}
	handle, err := s.Schedule(f, 40*time.Millisecond)
	testutil.AssertNoError(t, err)

	if !handle.Cancel() {
		t.Error("Cancel should report success")
	}
	if !handle.IsCancelled() {
		t.Error("IsCancelled should report true after Cancel")
	}

	time.Sleep(100 * time.Millisecond)
	testutil.AssertEqual(t, f.resumed(), 0)
}

func TestScheduler_CancelAfterFireIsHarmless(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	f := &testFiber{name: "quick"}
	handle, err := s.Schedule(f, time.Millisecond)
	testutil.AssertNoError(t, err)

	testutil.WaitForInt32(t, &f.resumes, 1, time.Second)

	// Late cancellation still reports success and never un-fires.
	if !handle.Cancel() {
		t.Error("Cancel should report success even after the fire")
	}
	time.Sleep(20 * time.Millisecond)
	testutil.AssertEqual(t, f.resumed(), 1)
}

func TestScheduler_ScheduleNilFiber(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	_, err := s.Schedule(nil, time.Second)
	testutil.AssertError(t, err)
	if !twerrors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestScheduler_RejectsAfterShutdown(t *testing.T) {
	s := New()
	s.Shutdown()

	_, err := s.Schedule(&testFiber{}, time.Second)
	testutil.AssertError(t, err)
	if !twerrors.IsRejected(err) {
		t.Errorf("expected ErrRejected, got %v", err)
	}

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate")
	}
}

func TestScheduler_GracefulShutdownDrainsInOrder(t *testing.T) {
	s := New()

	fired := make(chan string, 2)
	first := &testFiber{name: "first", fired: fired}
	second := &testFiber{name: "second", fired: fired}

	if _, err := s.Schedule(first, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(second, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	// Shutdown before either deadline; both must still fire, in order.
	s.Shutdown()
	testutil.AssertEqual(t, s.IsShutdown(), true)

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate after draining")
	}

	testutil.AssertEqual(t, <-fired, "first")
	testutil.AssertEqual(t, <-fired, "second")
	testutil.AssertEqual(t, s.IsTerminated(), true)
}

func TestScheduler_ShutdownIdempotent(t *testing.T) {
	s := New()

	s.Shutdown()
	s.Shutdown()

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate")
	}
	testutil.AssertEqual(t, s.IsShutdown(), true)
	testutil.AssertEqual(t, s.IsTerminated(), true)
}

func TestScheduler_ShutdownNowReturnsLeftovers(t *testing.T) {
	s := New()

	fibers := []*testFiber{
		{name: "x"}, {name: "y"}, {name: "z"},
	}
	for _, f := range fibers {
		if _, err := s.Schedule(f, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	leftovers := s.ShutdownNow()
	testutil.AssertEqual(t, len(leftovers), 3)

	seen := make(map[Fiber]bool, len(leftovers))
	for _, f := range leftovers {
		seen[f] = true
	}
	for _, f := range fibers {
		if !seen[f] {
			t.Errorf("fiber %s missing from leftovers", f.name)
		}
	}

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate after ShutdownNow")
	}

	// None of the drained wakeups may ever fire.
	time.Sleep(20 * time.Millisecond)
	for _, f := range fibers {
		testutil.AssertEqual(t, f.resumed(), 0)
	}
}

func TestScheduler_ShutdownNowDuringDrain(t *testing.T) {
	s := New()

	done := &testFiber{name: "done"}
	far := &testFiber{name: "far"}

	if _, err := s.Schedule(done, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	testutil.WaitForInt32(t, &done.resumes, 1, time.Second)

	if _, err := s.Schedule(far, time.Hour); err != nil {
		t.Fatal(err)
	}

	s.Shutdown()
	leftovers := s.ShutdownNow()

	testutil.AssertEqual(t, len(leftovers), 1)
	testutil.AssertEqual(t, leftovers[0].(*testFiber).name, "far")

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate")
	}
	testutil.AssertEqual(t, far.resumed(), 0)
}

func TestScheduler_AwaitTerminationTimesOut(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	if s.AwaitTermination(30 * time.Millisecond) {
		t.Error("AwaitTermination should time out on a running scheduler")
	}
	testutil.AssertEqual(t, s.IsTerminated(), false)
}

func TestScheduler_HandleCompletionOpsUnsupported(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	handle, err := s.Schedule(&testFiber{}, time.Hour)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	if err := handle.Await(ctx); !twerrors.IsUnsupported(err) {
		t.Errorf("Await should fail with ErrUnsupported, got %v", err)
	}
	if _, err := handle.Done(); !twerrors.IsUnsupported(err) {
		t.Errorf("Done should fail with ErrUnsupported, got %v", err)
	}
}

type failingFiber struct {
	calls int32
	err   error
}

func (f *failingFiber) Resume() error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func TestScheduler_ResumeErrorDoesNotStopWorker(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	bad := &failingFiber{err: twerrors.ErrClosed}
	good := &testFiber{name: "good"}

	if _, err := s.Schedule(bad, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(good, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	testutil.WaitForInt32(t, &good.resumes, 1, time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&bad.calls), 1)
}

type panicFiber struct{}

func (panicFiber) Resume() error {
	panic("resume blew up")
}

func TestScheduler_ResumePanicIsolated(t *testing.T) {
	var recovered atomic.Value
	s := NewWithConfig(Config{
		OnPanic: func(_ Fiber, r interface{}) {
			recovered.Store(r)
		},
	})
	defer s.ShutdownNow()

	good := &testFiber{name: "survivor"}

	if _, err := s.Schedule(panicFiber{}, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(good, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	// The worker must survive the panic and fire the next wakeup.
	testutil.WaitForInt32(t, &good.resumes, 1, time.Second)
	testutil.AssertEqual(t, recovered.Load().(string), "resume blew up")
}

type recordingMonitor struct {
	mu   sync.Mutex
	lags []time.Duration
}

func (m *recordingMonitor) RecordWaitLatency(lag time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lags = append(m.lags, lag)
}

func (m *recordingMonitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lags)
}

type monitoredFiber struct {
	testFiber
	mon *recordingMonitor
}

func (f *monitoredFiber) Monitor() Monitor {
	return f.mon
}

func TestScheduler_MonitorObservesWakeLatency(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	mon := &recordingMonitor{}
	f := &monitoredFiber{testFiber: testFiber{name: "watched"}, mon: mon}

	if _, err := s.Schedule(f, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	testutil.WaitForInt32(t, &f.resumes, 1, time.Second)
	testutil.Eventually(t, func() bool { return mon.count() == 1 }, time.Second, time.Millisecond)

	mon.mu.Lock()
	lag := mon.lags[0]
	mon.mu.Unlock()
	if lag < 0 {
		t.Errorf("wakeup fired %v early; never before the deadline", -lag)
	}
}

func TestScheduler_ConcurrentProducers(t *testing.T) {
	s := New()
	defer s.ShutdownNow()

	const producers = 8
	const perProducer = 20
	var total int32

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				f := &countingFiber{counter: &total}
				if _, err := s.Schedule(f, time.Duration(i)*time.Millisecond); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	testutil.WaitForInt32(t, &total, producers*perProducer, 5*time.Second)
}

type countingFiber struct {
	counter *int32
}

func (f *countingFiber) Resume() error {
	atomic.AddInt32(f.counter, 1)
	return nil
}

func TestScheduler_WorkerFactory(t *testing.T) {
	var gotName string
	started := make(chan struct{})

	s := NewWithConfig(Config{
		Name: "custom",
		WorkerFactory: func(name string, work func()) {
			gotName = name
			go func() {
				close(started)
				work()
			}()
		},
	})
	defer s.ShutdownNow()

	<-started
	testutil.AssertEqual(t, gotName, "custom-worker")
}

func newStoppedScheduler(t *testing.T, clock Clock) *scheduler {
	t.Helper()

	// A factory that never starts the worker keeps the queue untouched,
	// so time arithmetic can be probed deterministically.
	s := NewWithConfig(Config{
		Clock:         clock,
		WorkerFactory: func(string, func()) {},
	})
	return s.(*scheduler)
}

func TestScheduler_TriggerTimeClampsNegativeDelay(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	s := newStoppedScheduler(t, clock)

	testutil.AssertEqual(t, s.triggerTime(-time.Hour), s.now())
	testutil.AssertEqual(t, s.triggerTime(0), s.now())
}

func TestScheduler_TriggerTimeOverflowSafety(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	s := newStoppedScheduler(t, clock)

	overdue, err := s.Schedule(&testFiber{name: "overdue"}, 0)
	testutil.AssertNoError(t, err)

	// Make the head overdue, then schedule a near-infinite delay that
	// would wrap the deadline without the overflow guard.
	clock.Advance(time.Second)

	huge, err := s.Schedule(&testFiber{name: "huge"}, time.Duration(math.MaxInt64))
	testutil.AssertNoError(t, err)

	overdueTask := overdue.(*task)
	hugeTask := huge.(*task)

	if !overdueTask.Before(hugeTask) {
		t.Error("overdue wakeup must order before the huge-delay wakeup")
	}
	if hugeTask.Before(overdueTask) {
		t.Error("huge-delay wakeup must not compare as earlier than the overdue one")
	}
	if hugeTask.deadline < 0 {
		t.Errorf("deadline wrapped negative: %d", hugeTask.deadline)
	}
}

func TestScheduler_StateProgression(t *testing.T) {
	s := New()

	testutil.AssertEqual(t, s.IsShutdown(), false)
	testutil.AssertEqual(t, s.IsTerminated(), false)

	s.Shutdown()
	testutil.AssertEqual(t, s.IsShutdown(), true)

	if !s.AwaitTermination(time.Second) {
		t.Fatal("scheduler did not terminate")
	}
	testutil.AssertEqual(t, s.IsTerminated(), true)

	// Terminated is terminal; a forced shutdown afterwards changes nothing.
	testutil.AssertEqual(t, len(s.ShutdownNow()), 0)
	testutil.AssertEqual(t, s.IsTerminated(), true)
}
