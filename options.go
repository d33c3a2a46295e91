// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactivecell

import "time"

// engineOptions holds configuration options for Engine creation.
type engineOptions struct {
	logger            Logger
	metricsEnabled    bool
	reapInterval      time.Duration
	reapSizeThreshold int
}

// --- Engine Options ---

// EngineOption configures an Engine instance.
type EngineOption interface {
	applyEngine(*engineOptions) error
}

// engineOptionImpl implements EngineOption.
type engineOptionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *engineOptionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithLogger attaches a structured Logger to the Engine. Defaults to a
// NoOpLogger.
func WithLogger(l Logger) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics enables runtime metrics collection (queue depth, notify
// latency). Retrievable via Engine.Metrics. Disabled by default.
func WithMetrics(enabled bool) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithReapInterval overrides the default 5-second periodic queue-registry
// reap pass. A zero or negative value disables periodic reaping; Engine.Reap
// can still be called manually.
func WithReapInterval(d time.Duration) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.reapInterval = d
		return nil
	}}
}

// WithReapSizeThreshold overrides the pool size (default 10) past which an
// acquire() triggers an immediate reap pass in addition to the periodic one.
func WithReapSizeThreshold(n int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.reapSizeThreshold = n
		return nil
	}}
}

// resolveEngineOptions applies EngineOption instances to engineOptions.
func resolveEngineOptions(opts []EngineOption) (*engineOptions, error) {
	cfg := &engineOptions{
		logger:            &NoOpLogger{},
		reapInterval:      5 * time.Second,
		reapSizeThreshold: 10,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Subscribe Options ---

// notifyMode enumerates the closed "notify" grammar: false/true/"sync".
type notifyMode int

const (
	notifyNever notifyMode = iota
	notifyViaQueue
	notifySync
)

// subscribeOptions holds the resolved subscribe-option grammar for one
// Cell.Subscribe call.
type subscribeOptions struct {
	sync      bool
	clockTag  ClockTag
	timeout   time.Duration
	queueRef  *Queue
	notify    notifyMode
	tracking  trackingSpec
	wantThunk bool
}

// SubscribeOption configures a single Cell.Subscribe call, per the
// subscribe-option grammar (queue-spec, notify, tracking, unsubscribe).
type SubscribeOption interface {
	applySubscribe(*subscribeOptions)
}

type subscribeOptionImpl struct {
	applySubscribeFunc func(*subscribeOptions)
}

func (o *subscribeOptionImpl) applySubscribe(opts *subscribeOptions) {
	o.applySubscribeFunc(opts)
}

// WithSync routes the subscription through the cell's synchronous link list
// instead of an asynchronous queue (the "sync" queue-spec).
func WithSync() SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.sync = true
		opts.queueRef = nil
	}}
}

// WithClock routes the subscription through the shared queue for the given
// clock tag (the bare clock-tag queue-spec; timeout is not applicable).
func WithClock(tag ClockTag) SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.sync = false
		opts.clockTag = tag
		opts.timeout = -1
	}}
}

// WithClockTimeout routes the subscription through the shared queue for
// (tag, timeout) — the "[clock-tag, timeout]" queue-spec form. Meaningful
// for ClockTimeout and ClockIdle.
func WithClockTimeout(tag ClockTag, timeout time.Duration) SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.sync = false
		opts.clockTag = tag
		opts.timeout = timeout
	}}
}

// WithQueueRef routes the subscription directly through a concrete queue
// handle obtained from the registry (the "Queue-ref" queue-spec form).
func WithQueueRef(q *Queue) SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.sync = false
		opts.queueRef = q
	}}
}

// WithNotifyOnSubscribe requests an immediate first notification via the
// chosen queue (notify: true).
func WithNotifyOnSubscribe() SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.notify = notifyViaQueue
	}}
}

// WithNotifySync forces a synchronous first fire on subscribe, regardless
// of the chosen queue (notify: "sync").
func WithNotifySync() SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.notify = notifySync
	}}
}

// WithUnsubscribeThunk requests that Subscribe also return a bound
// unsubscribe closure alongside the link count (opts.unsubscribe).
func WithUnsubscribeThunk() SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.wantThunk = true
	}}
}

// WithTracking requests that the subscriber's callback receive dependency
// cells, their values, or cached values, shaped per the "tracking" grammar.
// Subscribe fails with a *TypeError unless the Subscriber was constructed via
// NewTrackingSubscriber.
func WithTracking(mode TrackingMode, shape TrackingShape) SubscribeOption {
	return &subscribeOptionImpl{func(opts *subscribeOptions) {
		opts.tracking = trackingSpec{mode: mode, shape: shape}
	}}
}

// resolveSubscribeOptions applies SubscribeOption instances to subscribeOptions.
func resolveSubscribeOptions(opts []SubscribeOption) subscribeOptions {
	cfg := subscribeOptions{
		clockTag: ClockMicrotask,
		timeout:  -1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applySubscribe(&cfg)
	}
	return cfg
}
