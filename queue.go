package reactivecell

import (
	"strconv"
	"time"

	"golang.org/x/exp/slices"
)

// queueID is a stable identifier for a registered queue, derived from its
// (clock-tag, timeout) key. Subscribers key their queued bookkeeping by
// this value without holding a strong reference to the Queue any longer
// than needed.
type queueID string

func makeQueueID(tag ClockTag, timeout time.Duration) queueID {
	if timeout < 0 {
		return queueID(string(tag))
	}
	return queueID(string(tag) + ":" + strconv.FormatInt(int64(timeout), 10))
}

// defaultMaxInline is the default pending-count threshold past which
// Queue.enqueueSub triggers an immediate synchronous drain.
const defaultMaxInline = 500

// defaultIdleSliceBudget bounds how long an idle queue's drain may run
// before its deadline reports exhaustion, the unfinished tail is requeued,
// and the queue reschedules itself to resume.
const defaultIdleSliceBudget = 10 * time.Millisecond

// Queue is a FIFO of subscribers awaiting dispatch on one clock source.
// It has two behavioral flavors: recursive (single growing buffer, batched
// re-snapshot loop) and double-buffered (swap on drain, optional
// time-sliced resumption).
type Queue struct {
	id       queueID
	tag      ClockTag
	timeout  time.Duration
	priority int
	engine   *Engine

	recursive bool
	maxInline int
	// drainRecursiveOnOverflow controls the recursive flag used when
	// enqueueSub's maxInline threshold triggers an immediate drain.
	drainRecursiveOnOverflow bool

	pending []*Subscriber
	spare   []*Subscriber // double-buffered flavor's second buffer

	draining bool
	used     bool // reaping: set on every drain, cleared by a reap pass

	scheduled bool // a backend scheduling (timer) or checkpoint is outstanding
	timer     *time.Timer

	// In-flight drain iteration state. Kept on the queue, not the stack, so
	// a reentrant flush(true) from inside a subscriber callback resumes the
	// very same iteration instead of restarting it: the drain neither
	// restarts nor double-notifies.
	cursor   int
	batchEnd int           // recursive flavor: end of the current batch within pending
	batch    []*Subscriber // double-buffered flavor: the swapped-out batch being iterated
	yielded  bool          // double-buffered flavor: bailed on deadline/overrun

	// sliceBudget, when positive, arms deadline at the start of each drain;
	// idle queues default to defaultIdleSliceBudget. deadline is consulted
	// between subscribers during a double-buffered drain; when it reports
	// true the unfinished tail is requeued and the queue re-schedules
	// itself to resume.
	sliceBudget time.Duration
	deadline    func() bool
}

// recordDepth reports this queue's current pending depth to the engine's
// metrics (a no-op if metrics are disabled).
func (q *Queue) recordDepth() {
	q.engine.metrics.recordQueueDepth(string(q.id), len(q.pending))
}

func newQueue(e *Engine, tag ClockTag, timeout time.Duration) *Queue {
	q := &Queue{
		id:                       makeQueueID(tag, timeout),
		tag:                      tag,
		timeout:                  timeout,
		priority:                 priorityOf(tag, timeout),
		engine:                   e,
		recursive:                recursiveFlavor(tag),
		maxInline:                defaultMaxInline,
		drainRecursiveOnOverflow: true,
		// A freshly acquired queue counts as used so a threshold-triggered
		// reap pass racing its creation never evicts it before it has had a
		// chance to drain anything.
		used: true,
	}
	if tag == ClockIdle {
		q.sliceBudget = defaultIdleSliceBudget
	}
	return q
}

// ID returns the queue's stable registry identifier — the clock tag, or
// "tag:timeoutNs" for timeout-parameterized tags.
func (q *Queue) ID() string { return string(q.id) }

// Tag returns the clock tag this queue is keyed on.
func (q *Queue) Tag() ClockTag { return q.tag }

// SetMaxInline overrides the pending-count threshold (default 500) past
// which an enqueue triggers an immediate synchronous drain instead of
// waiting for the backend scheduling.
func (q *Queue) SetMaxInline(n int) {
	q.engine.run(func() { q.maxInline = n })
}

// SetOverflowDrainRecursive controls the recursive flag passed to the
// immediate drain that a max-inline overflow triggers (default true).
func (q *Queue) SetOverflowDrainRecursive(recursive bool) {
	q.engine.run(func() { q.drainRecursiveOnOverflow = recursive })
}

// enqueueSub appends sub to the pending buffer. If pending exceeds
// maxInline, it triggers an immediate synchronous drain instead of waiting
// for the backend scheduling.
func (q *Queue) enqueueSub(s *Subscriber) {
	q.pending = append(q.pending, s)
	q.recordDepth()
	if len(q.pending) > q.maxInline {
		q.flush(q.drainRecursiveOnOverflow)
		return
	}
	if !q.scheduled && !q.draining {
		q.requestSchedule()
	}
}

// dequeue removes sub from the pending buffer, searching from the tail to
// accommodate the recursive flavor, and adjusting any in-flight drain
// cursor the same way a cell adjusts its sync iteration on
// unsubscribe-during-notify. A double-buffered queue may have already
// swapped sub out of pending into the batch being iterated, so the
// undispatched remainder of that batch is searched too. If the queue
// becomes empty and its clock supports cancellation, the outstanding
// scheduling is cancelled.
func (q *Queue) dequeue(s *Subscriber) {
	found := false
	for i := len(q.pending) - 1; i >= 0; i-- {
		if q.pending[i] == s {
			q.pending = slices.Delete(q.pending, i, i+1)
			if q.draining && q.recursive {
				if i < q.cursor {
					q.cursor--
				}
				if i < q.batchEnd {
					q.batchEnd--
				}
			}
			q.recordDepth()
			found = true
			break
		}
	}
	if !found {
		for i := len(q.batch) - 1; i >= q.cursor; i-- {
			if q.batch[i] == s {
				q.batch = slices.Delete(q.batch, i, i+1)
				break
			}
		}
	}
	if len(q.pending) == 0 && cancelable(q.tag) {
		q.cancelSchedule()
	}
}

// Flush drains the queue now. If the queue is not currently draining, any
// outstanding backend scheduling is cancelled, every strictly-lower-
// priority queue is chased-and-drained first, and this queue drains. If it
// IS currently draining — a subscriber callback flushing its own queue —
// recursive=true resumes the in-flight iteration inline, so every
// remaining pending subscriber has been dispatched by the time Flush
// returns, without re-dispatching any already-notified one;
// recursive=false does nothing in that case.
func (q *Queue) Flush(recursive bool) {
	q.engine.run(func() { q.flush(recursive) })
}

func (q *Queue) flush(recursive bool) {
	if q.draining {
		if recursive {
			q.resume()
		}
		return
	}
	q.cancelSchedule()
	q.engine.registry.drainBelow(q.priority)
	q.drain()
}

// resume advances the in-flight drain's own iteration, from inside one of
// its subscriber callbacks.
func (q *Queue) resume() {
	if q.recursive {
		q.resumeRecursive()
	} else {
		q.iterateBatch()
	}
}

func (q *Queue) requestSchedule() {
	if q.scheduled {
		return
	}
	if q.tag == ClockManual {
		// A manual queue's pending entries simply wait for an explicit
		// Flush or engine-wide flush, never a backend scheduling of
		// their own.
		return
	}
	q.scheduled = true
	if recursiveFlavor(q.tag) {
		// Drained at the next checkpoint (end of the current outermost
		// Engine.run), not by a real timer.
		return
	}
	delay := scheduleDelay(q.tag, q.timeout)
	q.timer = time.AfterFunc(delay, func() {
		q.engine.runAsync(func() {
			q.scheduled = false
			q.engine.flushChasing(q)
		})
	})
}

func (q *Queue) cancelSchedule() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.scheduled = false
}

// drain dispatches to the flavor-appropriate drain algorithm.
func (q *Queue) drain() {
	if q.draining {
		return
	}
	q.draining = true
	defer func() { q.draining = false }()

	// This firing consumes the outstanding scheduling; a yield re-arms it.
	q.cancelSchedule()
	q.used = true

	logger := q.engine.logger
	logDrain := logger != nil && logger.IsEnabled(LevelDebug)
	if logDrain {
		logger.Log(NewLogEntry(LevelDebug, "queue", "drain starting").
			QueueID(string(q.id)).Field("pending", len(q.pending)).Build())
	}
	if q.recursive {
		q.drainRecursive()
	} else {
		q.armDeadline()
		q.drainDoubleBuffered()
	}
	q.recordDepth()
	if logDrain {
		logger.Log(NewLogEntry(LevelDebug, "queue", "drain finished").
			QueueID(string(q.id)).Field("remaining", len(q.pending)).Build())
	}
}

// armDeadline primes the deadline callback for this drain when the queue
// carries a slice budget (idle clocks). A deadline installed directly is
// left untouched.
func (q *Queue) armDeadline() {
	if q.sliceBudget > 0 {
		at := time.Now().Add(q.sliceBudget)
		q.deadline = func() bool { return !time.Now().Before(at) }
	}
}

// dispatch invokes sub.call, timing the callback for the engine's dispatch
// latency metric (a no-op when metrics are disabled).
func (q *Queue) dispatch(sub *Subscriber) {
	if q.engine.metrics == nil {
		sub.call(q.id, true, nil)
		return
	}
	start := time.Now()
	sub.call(q.id, true, nil)
	q.engine.metrics.recordDispatch(time.Since(start))
}

// drainRecursive is the recursive-flavor drain: snapshot the batch size,
// dispatch that batch, then re-snapshot; anything enqueued during the
// batch forms the next one, with the dispatched prefix dropped and the
// global counter bumped between batches.
//
// The iteration's cursor and batch boundary live on the queue so that a
// reentrant flush(true) (resumeRecursive called from inside a dispatched
// callback) advances this very iteration; when the inner call returns, the
// outer loop finds the cursor already at the end and falls through.
func (q *Queue) drainRecursive() {
	q.cursor = 0
	q.batchEnd = len(q.pending)
	q.resumeRecursive()
	q.pending = q.pending[:0]
	q.cursor, q.batchEnd = 0, 0
}

func (q *Queue) resumeRecursive() {
	for {
		for q.cursor < q.batchEnd {
			i := q.cursor
			q.cursor++
			q.dispatch(q.pending[i])
		}
		newBatch := len(q.pending) - q.batchEnd
		if newBatch <= 0 {
			return
		}
		// Drop the dispatched prefix, keeping memory bounded across
		// arbitrarily long recursive enqueue chains.
		q.pending = append(q.pending[:0], q.pending[q.batchEnd:]...)
		q.cursor = 0
		q.batchEnd = newBatch
		q.engine.g = wrapInc(q.engine.g)
	}
}

// overrunThreshold bounds how large the live buffer may grow before a
// double-buffered drain treats it as an overrun and reschedules rather
// than looping forever inline.
const overrunThreshold = defaultMaxInline

// drainDoubleBuffered implements the double-buffered flavor: swap buffers,
// iterate the drained-out batch while new enqueues land in the live one,
// loop until both are empty or a deadline/overrun yields.
func (q *Queue) drainDoubleBuffered() {
	q.yielded = false
	for len(q.pending) > 0 {
		q.batch = q.pending
		q.pending = q.spare[:0]
		q.cursor = 0
		q.iterateBatch()
		if q.yielded {
			return
		}
		q.spare = q.batch[:0]
		q.batch = nil
		q.engine.g = wrapInc(q.engine.g)
	}
}

// iterateBatch walks the swapped-out batch from the shared cursor. On a
// deadline exhaustion or overrun the unfinished tail is prepended back into
// the pending buffer and the queue reschedules itself to resume later. Like
// resumeRecursive, the cursor lives on the queue so a reentrant flush(true)
// continues this same walk.
func (q *Queue) iterateBatch() {
	for q.cursor < len(q.batch) {
		i := q.cursor
		q.cursor++
		q.dispatch(q.batch[i])
		if q.yielded {
			// A reentrant resume hit the deadline/overrun path and already
			// requeued the tail.
			return
		}
		if (q.deadline != nil && q.deadline()) || len(q.pending) > overrunThreshold {
			tail := append([]*Subscriber{}, q.batch[q.cursor:]...)
			q.pending = append(tail, q.pending...)
			q.batch = nil
			q.cursor = 0
			q.yielded = true
			q.requestSchedule()
			return
		}
	}
}
