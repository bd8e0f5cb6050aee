/*
Package delayqueue provides a delay-ordered queue for a single consumer and
many concurrent producers.

Items implement the Delayed interface, reporting how long until they are ready
and how they order against other items. The queue keeps the earliest item at
the front and lets the consumer block until it is ready:

	q := delayqueue.New()

	// producers, from any goroutine
	q.Add(item)

	// the single consumer
	item, err := q.Take(ctx)

Take sleeps until the head item's delay elapses, and is woken early whenever a
producer inserts an item with an earlier deadline. Cancellation of the context
aborts the wait; this is how a worker loop is interrupted during shutdown.

The queue is safe for concurrent Add calls, but only one goroutine may call
Take. Adding a second consumer breaks the wakeup discipline: a signal consumed
by one consumer is invisible to the other.
*/
package delayqueue
