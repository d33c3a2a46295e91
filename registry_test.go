package reactivecell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryAcquireReusesQueue(t *testing.T) {
	e := newTestEngine(t)

	q1 := e.registry.acquire(e, ClockMicrotask, -1)
	q2 := e.registry.acquire(e, ClockMicrotask, -1)
	require.Same(t, q1, q2)

	q3 := e.registry.acquire(e, ClockTimeout, time.Second)
	require.NotSame(t, q1, q3)
	require.Equal(t, 2, e.registry.size())
}

func TestRegistryNonTimeoutTagsIgnoreTimeout(t *testing.T) {
	e := newTestEngine(t)

	q1 := e.registry.acquire(e, ClockMicrotask, time.Second)
	q2 := e.registry.acquire(e, ClockMicrotask, 2*time.Second)
	require.Same(t, q1, q2, "timeout is only meaningful for ClockTimeout/ClockIdle")
}

func TestRegistrySortedByPriority(t *testing.T) {
	e := newTestEngine(t)

	e.registry.acquire(e, ClockIdle, -1)
	e.registry.acquire(e, ClockSync, -1)
	e.registry.acquire(e, ClockMicrotask, -1)
	e.registry.acquire(e, ClockMessage, -1)

	sorted := e.registry.sortedByPriority()
	require.Len(t, sorted, 4)
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1].priority, sorted[i].priority)
	}
}

func TestRegistryReapRemovesIdleQueues(t *testing.T) {
	e := newTestEngine(t)

	q := e.registry.acquire(e, ClockMicrotask, -1)
	require.Equal(t, 1, e.registry.size())

	// Not used since creation, not pending: a forced reap should remove it.
	q.used = false
	e.registry.reap(true)
	require.Equal(t, 0, e.registry.size())
}

func TestRegistryReapSparesUsedOrPendingQueues(t *testing.T) {
	e := newTestEngine(t)

	idle := e.registry.acquire(e, ClockMicrotask, -1)
	idle.used = false

	busy := e.registry.acquire(e, ClockTick, -1)
	busy.used = true

	e.registry.reap(true)

	require.Equal(t, 1, e.registry.size())
	_, stillThere := e.registry.queues[registryKey{tag: ClockTick, timeout: -1}]
	require.True(t, stillThere)
}

func TestRegistryReapBatchesAndCompacts(t *testing.T) {
	e := newTestEngine(t)

	for i := 0; i < 5; i++ {
		q := e.registry.acquire(e, ClockTimeout, time.Duration(i+1)*time.Second)
		q.used = false
	}
	require.Equal(t, 5, e.registry.size())
	require.Len(t, e.registry.ring, 5)

	e.registry.sizeThreshold = 2
	e.registry.reap(false) // bounded batch: only scans 2 of 5 this pass
	require.Equal(t, 3, e.registry.size())

	e.registry.reap(false)
	require.LessOrEqual(t, e.registry.size(), 3)
}
