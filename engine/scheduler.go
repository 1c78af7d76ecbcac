package engine

import (
	"math/rand"
	"sync"
	"time"
)

// Task is one cancellable scheduled response. Cancel is safe to call at
// any point, including after the task fired; it reports whether it
// actually prevented the firing.
type Task struct {
	mu        sync.Mutex
	timer     *time.Timer
	fired     bool
	cancelled bool
}

func newTask(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		fn()
	})
	return t
}

func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	return true
}

func (t *Task) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Scheduler owns the per-bot pending flags and the staggered reply
// delays. A bot is pending from the moment it is reserved for a turn
// until its generated reply is delivered or dropped, so no bot ever has
// two outstanding responses. The map is only mutated from the engine
// goroutine; the Tasks themselves fire from timer goroutines.
type Scheduler struct {
	base    time.Duration
	jitter  time.Duration
	stagger time.Duration
	rnd     *rand.Rand

	pending map[string]*Task // nil value: reserved, not yet scheduled
}

func NewScheduler(base, jitter, stagger time.Duration, rnd *rand.Rand) *Scheduler {
	return &Scheduler{
		base:    base,
		jitter:  jitter,
		stagger: stagger,
		rnd:     rnd,
		pending: make(map[string]*Task),
	}
}

func (s *Scheduler) Pending(bot string) bool {
	_, ok := s.pending[bot]
	return ok
}

func (s *Scheduler) PendingSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.pending))
	for name := range s.pending {
		set[name] = struct{}{}
	}
	return set
}

// Reserve marks bot as pending before its delay is even computed, so a
// concurrent turn cannot double-book it. Returns false if already taken.
func (s *Scheduler) Reserve(bot string) bool {
	if _, ok := s.pending[bot]; ok {
		return false
	}
	s.pending[bot] = nil
	return true
}

// Schedule stages the delayed firing for a reserved bot.
// Delay grows with the stagger rank so sibling replies land one after
// another instead of all at once.
func (s *Scheduler) Schedule(bot string, rank int, fire func()) *Task {
	delay := s.base + time.Duration(rank)*s.stagger
	if s.jitter > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(s.jitter)))
	}
	task := newTask(delay, fire)
	s.pending[bot] = task
	return task
}

// Outstanding returns the task currently booked for bot, if any.
func (s *Scheduler) Outstanding(bot string) *Task {
	return s.pending[bot]
}

// Release clears the pending flag once a reply was delivered or dropped.
func (s *Scheduler) Release(bot string) {
	delete(s.pending, bot)
}

// Drop cancels and releases whatever bot has outstanding.
func (s *Scheduler) Drop(bot string) {
	if task, ok := s.pending[bot]; ok {
		if task != nil {
			task.Cancel()
		}
		delete(s.pending, bot)
	}
}

// CancelAll cancels every response that has not fired yet and clears its
// pending flag. Replies whose generation is already in flight keep their
// flag until they are delivered.
func (s *Scheduler) CancelAll() {
	for bot, task := range s.pending {
		if task == nil || task.Cancel() {
			delete(s.pending, bot)
		}
	}
}
