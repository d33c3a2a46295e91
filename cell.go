package reactivecell

import (
	"time"

	"golang.org/x/exp/slices"
)

// syncIterState tracks an in-progress synchronous notification's cursor, so
// a recursive notify of the same cell (triggered from inside a sync
// subscriber's callback) observes and collapses into the same window.
type syncIterState struct {
	active bool
	cursor int
	stop   int
}

// Cell is a reactive value holder: it wraps a single opaque value,
// maintains separate synchronous and asynchronous link lists, and
// dispatches changes to subscribers via the notification protocol
// implemented by notify.
type Cell struct {
	engine *Engine
	value  any

	syncLinks  []*Link
	asyncLinks []*Link

	dirtyStamp int64
	iter       syncIterState
}

// NewCell creates a Cell with the given initial value, bound to e. All of
// the cell's operations funnel through e's single loop goroutine.
func (e *Engine) NewCell(initial any) *Cell {
	return &Cell{
		engine:     e,
		value:      initial,
		dirtyStamp: neverDirty,
		iter:       syncIterState{cursor: -1, stop: -2},
	}
}

// Engine returns the Engine this cell is bound to.
func (c *Cell) Engine() *Engine { return c.engine }

// Get returns the current value; never triggers notification.
func (c *Cell) Get() any {
	var v any
	c.engine.run(func() { v = c.value })
	return v
}

// Set stores v and invokes notify().
func (c *Cell) Set(v any) {
	c.engine.run(func() {
		c.value = v
		c.notify()
	})
}

// Assume stores v without notifying, for coalesced external updates that
// should not re-trigger subscribers.
func (c *Cell) Assume(v any) {
	c.engine.run(func() { c.value = v })
}

// Update stores f(Get()) and invokes notify().
func (c *Cell) Update(f func(any) any) {
	c.engine.run(func() {
		c.value = f(c.value)
		c.notify()
	})
}

// Notify re-dispatches the current value to subscribers without changing
// it, using the same protocol as Set.
func (c *Cell) Notify() {
	c.engine.run(func() { c.notify() })
}

// hasLink reports whether sub already holds a link (sync or async) on this
// cell, enforcing the "not already subscribed for this cell" invariant.
func (c *Cell) hasLink(sub *Subscriber) bool {
	byOwner := func(l *Link) bool { return l.subscriber == sub }
	return slices.ContainsFunc(c.syncLinks, byOwner) || slices.ContainsFunc(c.asyncLinks, byOwner)
}

// Subscribe registers sub with the given options. It returns the cell's
// total subscriber count and, if WithUnsubscribeThunk was given, a bound
// unsubscribe closure as well (nil otherwise). A subscriber may hold at most
// one link (sync or async) per cell.
func (c *Cell) Subscribe(sub *Subscriber, opts ...SubscribeOption) (count int, unsubscribe func(), err error) {
	c.engine.run(func() {
		count, unsubscribe, err = c.subscribeLocked(sub, opts)
	})
	return
}

func (c *Cell) subscribeLocked(sub *Subscriber, optFns []SubscribeOption) (int, func(), error) {
	o := resolveSubscribeOptions(optFns)

	if c.hasLink(sub) {
		if logger := c.engine.logger; logger != nil && logger.IsEnabled(LevelWarn) {
			logger.Log(NewLogEntry(LevelWarn, "link", "subscribe rejected: already subscribed").Build())
		}
		return 0, nil, ErrAlreadySubscribed
	}

	if o.tracking.mode != TrackingNone && sub.tracking == nil {
		return 0, nil, &TypeError{Message: "reactivecell: WithTracking requires a subscriber constructed via NewTrackingSubscriber"}
	}

	var q *Queue
	if !o.sync {
		q = o.queueRef
		if q == nil {
			tag := o.clockTag
			if tag == "" {
				tag = ClockMicrotask
			}
			if !validClockTags[tag] {
				return 0, nil, &ClockTagError{Tag: string(tag)}
			}
			if o.timeout < -1 {
				return 0, nil, &RangeError{Message: "reactivecell: timeout must be -1 (unspecified) or >= 0"}
			}
			q = c.engine.registry.acquire(c.engine, tag, o.timeout)
		}
	}

	link := &Link{subscriber: sub, queue: q}
	link.markClean()
	if o.sync {
		c.syncLinks = append(c.syncLinks, link)
	} else {
		c.asyncLinks = append(c.asyncLinks, link)
	}

	if o.tracking.mode != TrackingNone {
		sub.spec = o.tracking
		sub.attachTracking(link, c)
	}

	switch o.notify {
	case notifySync:
		link.markDirty()
		sub.call(queueIDOf(link), link.Async(), link)
	case notifyViaQueue:
		if o.sync {
			link.markDirty()
			sub.call(queueIDOf(link), false, link)
		} else {
			sub.enqueue(link)
		}
	}

	count := len(c.syncLinks) + len(c.asyncLinks)

	var thunk func()
	if o.wantThunk {
		thunk = func() { _ = c.Unsubscribe(sub) }
	}
	return count, thunk, nil
}

func queueIDOf(l *Link) queueID {
	if l.queue == nil {
		return ""
	}
	return l.queue.id
}

// Unsubscribe removes sub's link from this cell, or unsubscribes every
// subscriber if sub is nil. Removing a link cancels any pending
// notification for that subscriber through this cell.
func (c *Cell) Unsubscribe(sub *Subscriber) error {
	var err error
	c.engine.run(func() {
		if sub == nil {
			c.unsubscribeAllLocked()
			return
		}
		err = c.unsubscribeLocked(sub)
	})
	return err
}

func (c *Cell) unsubscribeLocked(sub *Subscriber) error {
	for i, l := range c.syncLinks {
		if l.subscriber == sub {
			c.removeSyncLinkAt(i)
			sub.forget(l)
			return nil
		}
	}
	for i, l := range c.asyncLinks {
		if l.subscriber == sub {
			c.asyncLinks = slices.Delete(c.asyncLinks, i, i+1)
			sub.forget(l)
			return nil
		}
	}
	return ErrNotSubscribed
}

func (c *Cell) unsubscribeAllLocked() {
	for _, l := range c.syncLinks {
		l.subscriber.forget(l)
	}
	for _, l := range c.asyncLinks {
		l.subscriber.forget(l)
	}
	c.syncLinks = nil
	c.asyncLinks = nil
	c.iter = syncIterState{cursor: -1, stop: -2}
}

// removeSyncLinkAt removes the sync link at index i, adjusting any
// in-progress sync iteration so the removal cannot skip or double-visit a
// link: if cursor > i, decrement cursor; always decrement stop.
func (c *Cell) removeSyncLinkAt(i int) {
	c.syncLinks = slices.Delete(c.syncLinks, i, i+1)
	if c.iter.active {
		if c.iter.cursor > i {
			c.iter.cursor--
		}
		c.iter.stop--
	}
}

// notify is the notification protocol: an async phase that enqueues every
// async link at most once per advance of the global counter, followed by a
// sync phase that pre-marks links 1..n-1 dirty, dispatches link 0 (which
// may recursively re-enter this very function), and then walks the
// surviving cursor to invoke whatever is still dirty. Async links go first
// so every async subscriber is queued exactly once no matter how the sync
// phase unfolds; the pre-mark plus cursor collapse is what makes a
// recursive notify of this same cell terminate without double-notifying.
func (c *Cell) notify() {
	e := c.engine

	if e.logger != nil && e.logger.IsEnabled(LevelDebug) {
		e.logger.Log(NewLogEntry(LevelDebug, "cell", "notify").
			Field("sync", len(c.syncLinks)).
			Field("async", len(c.asyncLinks)).
			Build())
	}

	// --- async phase ---
	if len(c.asyncLinks) > 0 && e.g != c.dirtyStamp {
		c.dirtyStamp = e.g
		for _, l := range c.asyncLinks {
			l.subscriber.enqueue(l)
		}
	}
	// Advance the global counter on every notify, not just ones with sync
	// links: otherwise a cell with only async subscribers would see e.g
	// stay fixed forever after its first notify, and its dirtyStamp guard
	// would wrongly suppress every later, genuinely new change.
	e.g = wrapInc(e.g)

	// --- sync phase ---
	n := len(c.syncLinks)
	if n == 0 {
		return
	}

	if n > 1 {
		for i := 1; i < n; i++ {
			c.syncLinks[i].markDirty()
		}
		c.iter = syncIterState{active: true, cursor: 1, stop: n}
	}

	c.dispatchSync(c.syncLinks[0])

	if n > 1 {
		for c.iter.cursor < c.iter.stop {
			l := c.syncLinks[c.iter.cursor]
			c.iter.cursor++
			if l.isDirty() {
				c.dispatchSync(l)
			}
		}
		c.iter = syncIterState{cursor: -1, stop: -2}
	}
}

// dispatchSync invokes a synchronous link's subscriber. The subscriber's
// housekeeping (call-count bump, queued clearance) happens inside
// Subscriber.call before the wrapped callback runs, so a panic propagating
// out of the callback never leaves the subscriber mid-enqueued; the panic
// itself is never swallowed here, it propagates out of notify and out of
// the triggering Set/Update/Subscribe call (see Engine.run).
func (c *Cell) dispatchSync(l *Link) {
	if c.engine.metrics == nil {
		l.subscriber.call("", false, l)
		return
	}
	start := time.Now()
	l.subscriber.call("", false, l)
	c.engine.metrics.recordDispatch(time.Since(start))
}

// Listeners returns a read-only snapshot of this cell's current
// subscribers, for introspection/debugging — not part of the notification
// protocol itself.
func (c *Cell) Listeners() ListenerSnapshot {
	var snap ListenerSnapshot
	c.engine.run(func() {
		snap.Sync = len(c.syncLinks)
		snap.Async = make(map[string]int, len(c.asyncLinks))
		for _, l := range c.asyncLinks {
			snap.Async[string(l.queue.id)]++
		}
	})
	return snap
}
