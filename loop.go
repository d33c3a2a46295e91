package reactivecell

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Engine is the single-threaded cooperative scheduler that owns the queue
// registry and the global call counter, and drives every Cell bound to it.
// The only shared mutable state is the queue registry, the global call
// counter, and each cell's link lists, all touched exclusively from the
// engine's loop goroutine.
//
// The engine has no file descriptors or OS poller to wait on; its
// suspension points are exactly the moments between one clock-source firing
// and the next. It still needs a single dedicated goroutine: clock sources
// such as timeout/animation/idle fire on their own timer goroutines, and
// every one of those firings, plus every direct Cell.Get/Set/Subscribe call
// from arbitrary caller goroutines, must serialize onto one logical thread
// so that notify's recursive protocol can rely on nothing else touching a
// cell's link lists concurrently.
type Engine struct {
	g int64 // global call counter; touched only on the loop goroutine

	registry *queueRegistry
	state    *FastState
	logger   Logger
	metrics  *Metrics
	opts     *engineOptions

	loopGoroutineID atomic.Uint64
	submitCh        chan func()
	stopCh          chan struct{}
	stopOnce        sync.Once

	reapTimer *time.Timer
}

// New constructs an Engine and starts its loop goroutine.
func New(opts ...EngineOption) (*Engine, error) {
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		g:        minSafeCounter,
		registry: newQueueRegistry(cfg.reapSizeThreshold),
		state:    NewFastState(),
		logger:   cfg.logger,
		opts:     cfg,
		submitCh: make(chan func()),
		stopCh:   make(chan struct{}),
	}
	if cfg.metricsEnabled {
		e.metrics = newMetrics()
	}

	go e.loop()
	// Wait for the loop goroutine to take its first task, so New returns a
	// running engine.
	e.run(func() {})

	if cfg.reapInterval > 0 {
		e.scheduleReap()
	}

	return e, nil
}

func (e *Engine) loop() {
	e.loopGoroutineID.Store(getGoroutineID())
	e.state.Store(StateRunning)
	for {
		e.state.Store(StateSleeping)
		select {
		case fn := <-e.submitCh:
			e.state.Store(StateRunning)
			fn()
		case <-e.stopCh:
			e.state.Store(StateTerminated)
			return
		}
	}
}

func (e *Engine) isLoopThread() bool {
	return getGoroutineID() == e.loopGoroutineID.Load()
}

// getGoroutineID parses the calling goroutine's id out of a runtime.Stack
// trace header; there is no public API for this.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// run serializes fn onto the loop goroutine and blocks until it completes.
// If the caller is already on the loop goroutine (a recursive call from
// inside a subscriber callback, e.g. Set called from within another cell's
// notify), fn runs directly with no funnel, which is what lets the
// recursive notify protocol proceed as plain nested Go calls instead of
// deadlocking on a non-reentrant lock.
//
// A panic from fn (ultimately, from a subscriber callback) is recovered on
// the loop goroutine so that goroutine survives for the engine's other
// cells, then re-raised on the calling goroutine wrapped in a PanicError:
// the panic is never swallowed, but it also cannot take the engine down
// for everyone who isn't the one synchronous caller who gets to see it.
func (e *Engine) run(fn func()) {
	if e.isLoopThread() {
		fn()
		return
	}

	done := make(chan struct{})
	var panicVal any
	e.submitCh <- func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
				e.logPanic(r)
			}
			close(done)
		}()
		fn()
		e.checkpoint()
	}
	<-done
	if panicVal != nil {
		panic(&PanicError{Value: panicVal})
	}
}

// runAsync serializes fn onto the loop goroutine without waiting for it to
// finish, for clock firings (timers) that have no synchronous caller to
// propagate a panic to. A panicking callback is recovered and logged so one
// faulty subscriber cannot take down the whole engine's loop goroutine.
func (e *Engine) runAsync(fn func()) {
	e.submitCh <- func() {
		defer func() {
			if r := recover(); r != nil {
				e.logPanic(r)
			}
		}()
		fn()
		e.checkpoint()
	}
}

func (e *Engine) logPanic(r any) {
	if e.logger == nil || !e.logger.IsEnabled(LevelError) {
		return
	}
	e.logger.Log(NewLogEntry(LevelError, "queue", "subscriber callback panicked").
		Field("panic", r).
		Build())
}

// checkpoint drains every queue below "message" priority — sync's
// recursive-flavor siblings (microtask, promise, tick) — at the end of
// every outermost Engine.run/runAsync, the way a JS host drains its
// microtask queue once the current synchronous stack has fully unwound.
func (e *Engine) checkpoint() {
	e.registry.drainBelow(priorityMessage)
}

// flushChasing drains every queue of strictly lower priority than q, then
// drains q itself — the chase-and-drain contract for a clock source firing
// naturally, used by a queue's own backend timer callback.
func (e *Engine) flushChasing(q *Queue) {
	e.registry.drainBelow(q.priority)
	q.drain()
}

// AcquireQueue returns the engine's shared queue for (tag, timeout),
// creating it on first use. timeout is only meaningful for ClockTimeout
// and ClockIdle; pass -1 to leave it unspecified. The returned handle can
// be passed to [WithQueueRef], flushed directly, or configured via its
// Set... methods.
func (e *Engine) AcquireQueue(tag ClockTag, timeout time.Duration) (*Queue, error) {
	if !validClockTags[tag] {
		return nil, &ClockTagError{Tag: string(tag)}
	}
	if timeout < -1 {
		return nil, &RangeError{Message: "reactivecell: timeout must be -1 (unspecified) or >= 0"}
	}
	var q *Queue
	e.run(func() { q = e.registry.acquire(e, tag, timeout) })
	return q, nil
}

// Flush synchronously drains every registered queue, lowest priority
// first.
func (e *Engine) Flush(recursive bool) {
	e.run(func() { e.registry.flushAll(recursive) })
}

// Reap runs a registry reap pass now; force scans the whole pool instead
// of a threshold-bounded batch.
func (e *Engine) Reap(force bool) {
	e.run(func() { e.registry.reapWithLogger(force, e.logger) })
}

func (e *Engine) scheduleReap() {
	e.reapTimer = time.AfterFunc(e.opts.reapInterval, func() {
		e.runAsync(func() {
			e.registry.reapWithLogger(false, e.logger)
		})
		if e.state.Load() != StateTerminated {
			e.scheduleReap()
		}
	})
}

// QueueCount reports how many (tag, timeout) queues are currently pooled in
// the registry, for tests and metrics.
func (e *Engine) QueueCount() int {
	var n int
	e.run(func() { n = e.registry.size() })
	return n
}

// Metrics returns a snapshot of the engine's dispatch-latency, queue-depth,
// and dispatch-rate statistics. If the engine was constructed without
// [WithMetrics], every statistic is zero and QueueDepth is an empty map.
func (e *Engine) Metrics() Snapshot {
	var snap Snapshot
	e.run(func() { snap = e.metrics.Snapshot() })
	return snap
}

// Shutdown stops the engine's loop goroutine and cancels the periodic reap
// timer. Cells and queues created against a shut-down engine are no longer
// serviced; Get/Set/Subscribe calls made after Shutdown block forever.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		if e.reapTimer != nil {
			e.reapTimer.Stop()
		}
		e.state.Store(StateTerminating)
		close(e.stopCh)
	})
}

var defaultEngine = sync.OnceValue(func() *Engine {
	e, err := New()
	if err != nil {
		// New() only fails if an EngineOption returns an error; Default()
		// passes none, so this can't happen.
		panic(err)
	}
	return e
})

// Default returns the process-wide default Engine, created lazily on first
// use. Most programs need exactly one Engine; New is there for isolated
// instances (tests, or multiple independent reactive graphs).
func Default() *Engine {
	return defaultEngine()
}
