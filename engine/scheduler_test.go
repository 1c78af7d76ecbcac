package engine

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduler(base time.Duration) *Scheduler {
	return NewScheduler(base, 0, 0, rand.New(rand.NewSource(1)))
}

func Test_scheduler_reserve_excludes_double_booking(t *testing.T) {
	s := testScheduler(time.Hour)

	require.True(t, s.Reserve("철수"))
	assert.False(t, s.Reserve("철수"), "a reserved bot cannot be booked twice")
	assert.True(t, s.Pending("철수"))

	s.Release("철수")
	assert.False(t, s.Pending("철수"))
	assert.True(t, s.Reserve("철수"))
}

func Test_scheduler_pending_set_snapshot(t *testing.T) {
	s := testScheduler(time.Hour)
	s.Reserve("철수")
	s.Reserve("영희")

	set := s.PendingSet()
	assert.Len(t, set, 2)

	// The snapshot is detached from the live map.
	s.Release("철수")
	assert.Len(t, set, 2)
	assert.Len(t, s.PendingSet(), 1)
}

func Test_task_cancel_prevents_firing(t *testing.T) {
	var fired atomic.Int32
	task := newTask(20*time.Millisecond, func() { fired.Add(1) })

	require.True(t, task.Cancel())
	assert.False(t, task.Fired())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.False(t, task.Cancel(), "cancelling twice reports no effect")
}

func Test_task_cancel_after_firing_reports_false(t *testing.T) {
	done := make(chan struct{})
	task := newTask(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}

	assert.True(t, task.Fired())
	assert.False(t, task.Cancel())
}

func Test_scheduler_cancel_all_keeps_in_flight_replies_pending(t *testing.T) {
	s := testScheduler(time.Hour)

	s.Reserve("철수") // reserved, not yet scheduled
	s.Reserve("영희")
	s.Schedule("영희", 0, func() {})
	s.Reserve("민수")
	inFlight := s.Schedule("민수", 0, func() {})

	// Simulate 민수's task having fired already.
	inFlight.mu.Lock()
	inFlight.fired = true
	inFlight.mu.Unlock()

	s.CancelAll()

	assert.False(t, s.Pending("철수"))
	assert.False(t, s.Pending("영희"))
	assert.True(t, s.Pending("민수"), "a reply mid-generation keeps its flag until delivery")
}

func Test_scheduler_delay_grows_with_rank(t *testing.T) {
	s := NewScheduler(10*time.Millisecond, 0, 30*time.Millisecond, rand.New(rand.NewSource(1)))

	var first, second atomic.Int64
	start := time.Now()
	s.Reserve("철수")
	s.Reserve("영희")
	s.Schedule("철수", 0, func() { first.Store(int64(time.Since(start))) })
	s.Schedule("영희", 1, func() { second.Store(int64(time.Since(start))) })

	time.Sleep(100 * time.Millisecond)
	require.NotZero(t, first.Load())
	require.NotZero(t, second.Load())
	assert.Greater(t, second.Load(), first.Load())
}

func Test_scheduler_drop_cancels_outstanding_task(t *testing.T) {
	s := testScheduler(time.Hour)
	var fired atomic.Int32
	s.Reserve("철수")
	s.Schedule("철수", 0, func() { fired.Add(1) })

	s.Drop("철수")
	assert.False(t, s.Pending("철수"))
	assert.Zero(t, fired.Load())
}
