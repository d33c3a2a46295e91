package reactivecell

import "golang.org/x/exp/slices"

// TrackingMode is the first element of the tracking option: which kind of
// data a tracking subscriber wants.
type TrackingMode int

const (
	// TrackingNone means the subscriber is not tracking-aware; its plain
	// callback is invoked with no arguments.
	TrackingNone TrackingMode = iota
	// TrackingDeps passes the subscribed Cells themselves.
	TrackingDeps
	// TrackingVals passes each cell's current value, re-read on every call.
	TrackingVals
	// TrackingCache passes each cell's value, but only re-reads a given
	// cell's value when that specific cell is the one driving this call;
	// untouched dependencies reuse their primed cached value.
	TrackingCache
)

// TrackingShape is the second element of the "tracking" grammar: how
// multiple values are shaped for the callback.
type TrackingShape int

const (
	// ShapeArray passes all values as a single []any slice.
	//
	// ShapeExpand ("spread as arguments") has no faithful Go rendition
	// (there is no runtime-variadic call without reflection trickery); this
	// port treats ShapeExpand identically to ShapeArray and documents the
	// simplification in DESIGN.md rather than reaching for reflect.Call.
	ShapeExpand TrackingShape = iota
	ShapeArray
	// ShapeSingle passes values exactly as ShapeArray does: a
	// TrackingCallback always receives an []any, so a lone tracked
	// dependency arrives as a one-element slice, not as the bare value.
	ShapeSingle
)

type trackingSpec struct {
	mode  TrackingMode
	shape TrackingShape
}

// queuedEntry records how many of a subscriber's async links are currently
// dirty on a given queue.
type queuedEntry struct {
	count int
	queue *Queue
}

// PlainCallback is a subscriber callback with no tracking arguments.
type PlainCallback func()

// TrackingCallback is a subscriber callback that receives its tracked
// dependencies, shaped per TrackingMode/TrackingShape.
type TrackingCallback func(args []any)

// Subscriber is a callback plus its per-queue enqueue bookkeeping. A
// Subscriber may be registered as a link on any number of cells; the
// wrapped callback bumps the call counter before invocation so that,
// regardless of how many links fired, the subscriber is notified at most
// once per flush boundary.
type Subscriber struct {
	callCount int64
	queued    map[queueID]*queuedEntry

	plain    PlainCallback
	tracking TrackingCallback
	spec     trackingSpec

	// trackLinks holds every Link this subscriber tracks, in subscribe
	// order, so the wrapped callback can assemble its argument list. Only
	// populated for tracking-mode subscribers.
	trackLinks []*Link
}

// NewSubscriber constructs a plain (non-tracking) Subscriber wrapping fn.
func NewSubscriber(fn PlainCallback) *Subscriber {
	return &Subscriber{
		callCount: minSafeCounter,
		queued:    make(map[queueID]*queuedEntry),
		plain:     fn,
	}
}

// NewTrackingSubscriber constructs a Subscriber whose callback receives its
// dependency cells/values/cached-values per the WithTracking option chosen
// at each Subscribe call.
func NewTrackingSubscriber(fn TrackingCallback) *Subscriber {
	return &Subscriber{
		callCount: minSafeCounter,
		queued:    make(map[queueID]*queuedEntry),
		tracking:  fn,
	}
}

// call dispatches the subscriber, in a contractual order:
//  1. remove qid from queued if present
//  2. for every other queue-id still in queued, dequeue self from that
//     queue and delete the entry (notified at most once per flush even if
//     queued on multiple clocks)
//  3. increment call_count (implicitly cleans every link of this subscriber)
//  4. invoke the wrapped callback
//
// triggerLink, if non-nil, is the link whose cell drove this invocation; it
// is used only to refresh a TrackingCache link's cached value at the moment
// of firing (see trackingArgs). Queue drains pass nil; the links they fire
// for are found by their dirty marker instead.
func (s *Subscriber) call(qid queueID, hasQid bool, triggerLink *Link) {
	if hasQid {
		delete(s.queued, qid)
	}
	for otherID, entry := range s.queued {
		entry.queue.dequeue(s)
		delete(s.queued, otherID)
	}
	// Refresh the cache of every tracked link that drove this call: the
	// trigger link, plus any link still dirty (queued async links and
	// pre-marked sync links), before the counter bump cleans them.
	if s.spec.mode == TrackingCache {
		for _, l := range s.trackLinks {
			if l == triggerLink || l.isDirty() {
				l.cachedValue = l.cell.value
				l.cachedSet = true
			}
		}
	}
	s.callCount = wrapInc(s.callCount)

	switch {
	case s.tracking != nil:
		s.tracking(s.trackingArgs())
	case s.plain != nil:
		s.plain()
	}
}

// enqueue records a change arriving through l: if the link is already
// dirty, it's a no-op; otherwise mark it dirty and ensure its queue has
// exactly one pending entry for this subscriber.
func (s *Subscriber) enqueue(l *Link) {
	if l.isDirty() {
		return
	}
	l.markDirty()
	qid := l.queue.id
	if entry, ok := s.queued[qid]; ok {
		entry.count++
		return
	}
	s.queued[qid] = &queuedEntry{count: 1, queue: l.queue}
	l.queue.enqueueSub(s)
}

// forget removes all bookkeeping for a link that is being unsubscribed:
// its share of the queue entry's dirty-link count (if async and currently
// dirty/queued) and its tracking slot (if tracking-aware). queued[q].count
// tracks how many of the subscriber's dirty async links sit on queue q, so
// only this link's own contribution is removed — the subscriber stays
// queued, and its other dirty links still fire, until the count reaches 0.
func (s *Subscriber) forget(l *Link) {
	if l.queue != nil && l.isDirty() {
		if entry, ok := s.queued[l.queue.id]; ok {
			entry.count--
			if entry.count <= 0 {
				l.queue.dequeue(s)
				delete(s.queued, l.queue.id)
			}
		}
	}
	if l.tracking {
		if i := slices.Index(s.trackLinks, l); i >= 0 {
			s.trackLinks = slices.Delete(s.trackLinks, i, i+1)
		}
	}
}

// attachTracking registers l as one of this subscriber's tracked
// dependencies, in subscribe order, and — for TrackingCache — primes its
// cached value immediately (the only time that cell's current value is
// read, until that specific link next drives a call).
func (s *Subscriber) attachTracking(l *Link, c *Cell) {
	l.tracking = true
	l.cell = c
	s.trackLinks = append(s.trackLinks, l)
	if s.spec.mode == TrackingCache {
		l.cachedValue = c.value
		l.cachedSet = true
	}
}

// trackingArgs assembles the callback argument list per the subscriber's
// tracking mode and shape.
func (s *Subscriber) trackingArgs() []any {
	values := make([]any, len(s.trackLinks))
	for i, l := range s.trackLinks {
		switch s.spec.mode {
		case TrackingDeps:
			values[i] = l.cell
		case TrackingCache:
			if !l.cachedSet {
				l.cachedValue = l.cell.value
				l.cachedSet = true
			}
			values[i] = l.cachedValue
		default: // TrackingVals
			values[i] = l.cell.value
		}
	}
	if s.spec.shape == ShapeSingle && len(values) == 1 {
		return values[:1]
	}
	return values
}
