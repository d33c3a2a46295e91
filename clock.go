package reactivecell

import "time"

// ClockTag is one of the closed set of clock-source tags a queue can be
// keyed on.
type ClockTag string

const (
	// ClockSync is not a registry queue tag at all — cells dispatch sync
	// subscribers inline from their own link list. It exists here only so
	// priorityOf has a value lower than every real queue.
	ClockSync ClockTag = "sync"

	ClockMicrotask ClockTag = "microtask"
	ClockPromise   ClockTag = "promise"
	ClockTick      ClockTag = "tick"
	ClockImmediate ClockTag = "immediate"
	ClockMessage   ClockTag = "message"
	ClockTimeout   ClockTag = "timeout"
	ClockAnimation ClockTag = "animation"
	ClockIdle      ClockTag = "idle"
	ClockManual    ClockTag = "manual"
)

// validClockTags is the closed enumeration accepted by Subscribe's
// queue-spec grammar.
var validClockTags = map[ClockTag]bool{
	ClockMicrotask: true,
	ClockPromise:   true,
	ClockTick:      true,
	ClockImmediate: true,
	ClockMessage:   true,
	ClockTimeout:   true,
	ClockAnimation: true,
	ClockIdle:      true,
	ClockManual:    true,
}

// recursiveFlavor reports whether tag uses the recursive queue flavor
// (cheap-to-reschedule clock sources) as opposed to the double-buffered
// flavor.
func recursiveFlavor(tag ClockTag) bool {
	switch tag {
	case ClockMicrotask, ClockPromise, ClockTick:
		return true
	default:
		return false
	}
}

// Priority tiers:
//
//	sync < microtask < promise < tick < message < immediate/timeout < animation < idle
//
// timeout(N) floats between message and animation according to N.
// Microtask and promise are both microtask-class in practice; the strict
// microtask-below-promise ordering is a tiebreak for when both are
// nonempty, not a real scheduling difference.
const (
	prioritySync       = 0
	priorityMicrotask  = 100
	priorityPromise    = 110
	priorityTick       = 200
	priorityMessage    = 300
	priorityImmediate  = 400
	priorityTimeoutMin = 401
	priorityTimeoutMax = 799
	priorityAnimation  = 800
	priorityIdle       = 900
	// priorityManual is deliberately higher than every real clock's
	// priority: manual queues never fire on their own, so they must never
	// be swept up by a lower-priority chase-and-drain pass.
	priorityManual = 1 << 30
)

// priorityOf computes the cross-queue drain priority for a (tag, timeout)
// pair. Higher numbers drain later.
func priorityOf(tag ClockTag, timeout time.Duration) int {
	switch tag {
	case ClockSync:
		return prioritySync
	case ClockMicrotask:
		return priorityMicrotask
	case ClockPromise:
		return priorityPromise
	case ClockTick:
		return priorityTick
	case ClockMessage:
		return priorityMessage
	case ClockImmediate:
		return priorityImmediate
	case ClockTimeout:
		return timeoutPriority(timeout)
	case ClockAnimation:
		return priorityAnimation
	case ClockIdle:
		return priorityIdle
	case ClockManual:
		return priorityManual
	default:
		return priorityMessage
	}
}

// timeoutPriority maps a timeout(ms) clock to a priority strictly between
// immediate/message and animation, scaled by delay: a near-zero timeout
// floats close to priorityImmediate, while long timeouts approach
// priorityAnimation without ever reaching or exceeding it.
func timeoutPriority(timeout time.Duration) int {
	if timeout <= 0 {
		return priorityTimeoutMin
	}
	const scaleWindow = 10 * time.Second
	ms := timeout
	if ms > scaleWindow {
		ms = scaleWindow
	}
	span := priorityTimeoutMax - priorityTimeoutMin
	offset := int(int64(ms) * int64(span) / int64(scaleWindow))
	return priorityTimeoutMin + offset
}

// scheduleDelay returns the real wall-clock delay used to back a clock tag
// with a time.Timer, for tags whose queue isn't drained at a checkpoint.
// With no browser or host event loop underneath, message/immediate/timeout/
// animation/idle are all backed by a real timer at an appropriate delay.
func scheduleDelay(tag ClockTag, timeout time.Duration) time.Duration {
	switch tag {
	case ClockMessage, ClockImmediate:
		return 0
	case ClockTimeout:
		if timeout <= 0 {
			return 0
		}
		return timeout
	case ClockAnimation:
		// Approximates "before next repaint" at 60Hz; there is no real
		// compositor to synchronize with outside a browser host.
		return 16 * time.Millisecond
	case ClockIdle:
		if timeout > 0 {
			return timeout
		}
		// "when host reports idle" has no analogue off-host; approximate
		// with a short delay so idle work still makes forward progress.
		return 50 * time.Millisecond
	default:
		return 0
	}
}

// cancelable reports whether a clock source supports cancelling an
// outstanding scheduling.
func cancelable(tag ClockTag) bool {
	switch tag {
	case ClockImmediate, ClockTimeout, ClockAnimation, ClockIdle:
		return true
	default:
		return false
	}
}
