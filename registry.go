package reactivecell

import (
	"time"

	"golang.org/x/exp/slices"
)

// registryKey is the (clock-tag, timeout) pair the registry pools queues
// by.
type registryKey struct {
	tag     ClockTag
	timeout time.Duration
}

// queueRegistry is the process-wide (per Engine) pool of queues keyed by
// (clock-tag, timeout): lazy-creates on first acquire and reaps idle queues
// with a bounded ring-buffer scavenge pass, where liveness means "drained
// at least once since the previous pass, or still holding pending
// entries". Since every Cell op funnels through its Engine's single loop
// goroutine, no locking is required here.
type queueRegistry struct {
	queues map[registryKey]*Queue

	// ring is a circular buffer of registry keys giving the scavenge
	// pass a deterministic walk order.
	ring []registryKey
	head int

	sizeThreshold int
}

func newQueueRegistry(sizeThreshold int) *queueRegistry {
	return &queueRegistry{
		queues:        make(map[registryKey]*Queue),
		ring:          make([]registryKey, 0, 64),
		sizeThreshold: sizeThreshold,
	}
}

// acquire returns the shared queue for (tag, timeout), creating it on
// first use.
func (r *queueRegistry) acquire(e *Engine, tag ClockTag, timeout time.Duration) *Queue {
	if timeout < 0 || !usesTimeout(tag) {
		timeout = -1
	}
	key := registryKey{tag, timeout}
	if q, ok := r.queues[key]; ok {
		return q
	}
	q := newQueue(e, tag, timeout)
	r.queues[key] = q
	r.ring = append(r.ring, key)
	if len(r.queues) > r.sizeThreshold {
		// The pool growing past its size threshold is itself a reap
		// trigger, in addition to the periodic pass. The queue just
		// created survives because it is born used.
		r.reapWithLogger(false, e.logger)
	}
	return q
}

func usesTimeout(tag ClockTag) bool {
	return tag == ClockTimeout || tag == ClockIdle
}

// sortedByPriority walks the live queues lowest-priority-first, for the
// cross-queue chase-and-drain pass.
func (r *queueRegistry) sortedByPriority() []*Queue {
	out := make([]*Queue, 0, len(r.ring))
	for _, key := range r.ring {
		if q, ok := r.queues[key]; ok {
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b *Queue) int { return a.priority - b.priority })
	return out
}

// drainBelow fully drains every queue of priority strictly lower than
// threshold. Draining one queue may repopulate another still below the
// threshold (a recursive chain of effects across clock sources), so this
// loops until a full pass makes no further progress: chase-and-drain until
// nothing below the threshold has anything pending.
func (r *queueRegistry) drainBelow(threshold int) {
	for {
		progressed := false
		for _, q := range r.sortedByPriority() {
			if q.priority < threshold && len(q.pending) > 0 && !q.draining {
				q.drain()
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

// flushAll iterates every registered queue lowest-priority-first and
// flushes each, so a cross-queue chase-and-drain naturally falls out of
// the order.
func (r *queueRegistry) flushAll(recursive bool) {
	for _, q := range r.sortedByPriority() {
		q.flush(recursive)
	}
}

// reap removes queues that are empty and were unused since the last pass.
// Scans the whole ring when force is true or the ring is small; otherwise
// scans a bounded batch per call, so a very large pool never reaps in one
// long pause.
func (r *queueRegistry) reap(force bool) {
	r.reapWithLogger(force, nil)
}

func (r *queueRegistry) reapWithLogger(force bool, logger Logger) {
	n := len(r.ring)
	if n == 0 {
		return
	}
	batch := n
	if !force && n > r.sizeThreshold {
		batch = r.sizeThreshold
	}

	removed := 0
	for i := 0; i < batch; i++ {
		idx := (r.head + i) % n
		key := r.ring[idx]
		q, ok := r.queues[key]
		if !ok {
			continue
		}
		if len(q.pending) == 0 && !q.used && !q.draining {
			delete(r.queues, key)
			removed++
		} else {
			q.used = false
		}
	}

	nextHead := (r.head + batch) % n
	cycleCompleted := nextHead <= r.head
	r.head = nextHead

	if logger != nil && logger.IsEnabled(LevelDebug) {
		logger.Log(NewLogEntry(LevelDebug, "registry", "reap pass").
			Field("scanned", batch).Field("removed", removed).Field("force", force).Build())
	}

	if cycleCompleted && removed > 0 {
		r.compact()
	}
}

// compact rebuilds the ring to drop keys whose queue was already removed
// from the map, reclaiming the backing array after heavy churn.
func (r *queueRegistry) compact() {
	newRing := make([]registryKey, 0, len(r.queues))
	for _, key := range r.ring {
		if _, ok := r.queues[key]; ok {
			newRing = append(newRing, key)
		}
	}
	r.ring = newRing
	r.head = 0
}

// size reports how many queues are currently pooled, for metrics and tests.
func (r *queueRegistry) size() int {
	return len(r.queues)
}
