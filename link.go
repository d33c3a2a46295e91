package reactivecell

import "math"

// Global call-counter bounds. The counter wraps from its maximum back to
// one above its minimum, preserving comparability of dirty markers across
// the wrap; the slot below the minimum is reserved as a sentinel that can
// never equal a live counter value.
const (
	maxSafeCounter int64 = math.MaxInt64
	minSafeCounter int64 = math.MinInt64 + 1
	// neverDirty sits one below minSafeCounter (i.e. math.MinInt64) so it
	// can never equal a live call-counter value or a live dirty marker:
	// used as a cell's initial dirty-stamp so the very first notify always
	// re-enqueues its async links.
	neverDirty int64 = math.MinInt64
)

func wrapInc(v int64) int64 {
	if v == maxSafeCounter {
		return minSafeCounter
	}
	return v + 1
}

func wrapDec(v int64) int64 {
	if v == minSafeCounter {
		return maxSafeCounter
	}
	return v - 1
}

// Link is the edge between one Cell and one Subscriber. It carries a
// dirty marker compared against the subscriber's call counter
// (so cleaning a whole subscriber's links is an O(1) counter bump, not a
// walk), and, for asynchronous subscriptions, a reference to the target
// queue. Tracking subscriptions additionally cache the owning cell and its
// last-observed value.
type Link struct {
	subscriber *Subscriber
	queue      *Queue // nil for synchronous links
	dirty      int64

	// tracking extension: the paired cell, plus a cached value for
	// cache-mode tracking subscribers
	cell        *Cell
	tracking    bool
	cachedValue any
	cachedSet   bool
}

// isDirty reports whether the link is currently dirty, i.e. its subscriber
// has not yet observed the latest change through this link.
func (l *Link) isDirty() bool {
	return l.dirty == l.subscriber.callCount
}

func (l *Link) markDirty() {
	l.dirty = l.subscriber.callCount
}

// markClean resets the link to its just-cleaned representation, used both
// when a subscriber completes a call (implicitly, via the counter bump) and
// when a brand new link is created (it must start clean regardless of the
// subscriber's current counter value).
func (l *Link) markClean() {
	l.dirty = wrapDec(l.subscriber.callCount)
}

// Async reports whether this is an asynchronous (queue-backed) link.
func (l *Link) Async() bool {
	return l.queue != nil
}
