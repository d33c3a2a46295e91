// Package reactivecell implements a reactive value/subscriber notification
// engine: a [Cell] wraps a single opaque value, and any number of
// [Subscriber]s register interest in one or more cells via [Cell.Subscribe].
// Mutating a cell with [Cell.Set], [Cell.Update], or [Cell.Notify] dispatches
// to every subscriber exactly once per change, whether that subscriber was
// registered synchronously or against one of a hierarchy of asynchronous
// clock sources (microtask, promise, tick, message, immediate, timeout,
// animation, idle, or manual).
//
// # Architecture
//
// An [Engine] owns the single-threaded, cooperative scheduling loop that
// every [Cell] bound to it funnels through: the global call counter, the
// queue registry, and each cell's link lists are only ever touched from one
// logical thread, so the recursive synchronous-notification protocol can
// proceed as plain nested Go calls rather than needing a lock.
//
// A [Link] is the edge between one cell and one subscriber; it is clean or
// dirty, compared against the subscriber's call counter so an entire
// subscriber's links are cleaned in O(1) by a single counter bump rather than
// a walk. Asynchronous links additionally carry a reference to the
// [Queue] they are pending on, by way of the per-(clock-tag, timeout)
// [queueRegistry].
//
// # Notification protocol
//
// [Cell.notify] dispatches asynchronous links first — enqueuing each one on
// its subscriber exactly once per advance of the global counter — then walks
// the synchronous link list. The first synchronous link is invoked directly;
// every other synchronous link is pre-marked dirty and held behind an
// iteration cursor so that a subscriber which recursively mutates the same
// cell observes and collapses into the very same iteration window, instead
// of starting a second one. See the package's cell.go for the exact
// algorithm and its rationale.
//
// # Clock sources and queues
//
// Each [ClockTag] is a strategy for scheduling a deferred drain: some
// (microtask, promise, tick) are cheap enough to re-schedule that their
// [Queue] uses a single growing buffer drained in a batch loop; others
// (message, immediate, timeout, animation, idle) use a double-buffered queue
// that swaps on drain so new enqueues land in a fresh buffer without
// disturbing the batch currently being dispatched. Queues of different
// clock tags are ranked by priority (sync < microtask < promise < tick <
// message < immediate/timeout < animation < idle); flushing a queue
// first chases-and-drains every strictly-lower-priority queue, so a
// recursive chain of effects across clock sources settles within one flush.
//
// # Usage
//
//	engine, err := reactivecell.New(reactivecell.WithMetrics(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Shutdown()
//
//	count := engine.NewCell(0)
//	sub := reactivecell.NewSubscriber(func() {
//	    fmt.Println("count is now", count.Get())
//	})
//	if _, _, err := count.Subscribe(sub, reactivecell.WithClock(reactivecell.ClockMicrotask)); err != nil {
//	    log.Fatal(err)
//	}
//	count.Set(1)
//
// # Error types
//
// The package surfaces a small, closed set of error kinds:
//   - [ErrAlreadySubscribed], [ErrNotSubscribed]: recoverable subscribe/
//     unsubscribe misuse.
//   - [ClockTagError] (wraps [ErrUnknownClockTag]): an unsupported clock tag
//     was requested.
//   - [PanicError]: wraps a value recovered from a panicking subscriber
//     callback and re-raised to the synchronous caller that triggered the
//     dispatch. A panic during a timer-driven drain, which has no such
//     caller, is recovered and reported to the engine's Logger at error
//     level instead of being re-raised.
//   - [TypeError], [RangeError]: argument validation failures.
//
// # Out of scope
//
// This package implements only the notification engine described above: no
// dependency auto-tracking (subscriptions are always explicit), no derived/
// computed values, no persistence, and no cross-process transport. A
// property-wrapping layer that rewrites host object fields into reactive
// cells, or a computed-value layer built atop [Cell.Subscribe], can be
// built on top without changes to this package.
package reactivecell
