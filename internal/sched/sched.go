// Package sched is a single-threaded discrete-event scheduler. Every task runs
// to completion on the loop goroutine, in deadline order, so the state a task
// touches needs no further locking. Work arriving from other goroutines goes
// through Post and runs before the next timed task.
package sched

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// Task is a run-to-completion callback.
type Task func()

// Scheduler owns a virtual clock starting at zero.
type Scheduler struct {
	mu    sync.Mutex // guards inbox
	inbox []Task
	wake  chan struct{}

	// lock, when set, is held while a batch of tasks runs.
	lock sync.Locker

	now time.Duration
	seq uint64
	q   taskQueue
	rng *rand.Rand
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithSeed makes jitter draws reproducible.
func WithSeed(seed int64) Option {
	return func(s *Scheduler) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithLocker holds l while tasks run so other goroutines can read the state
// those tasks mutate.
func WithLocker(l sync.Locker) Option {
	return func(s *Scheduler) { s.lock = l }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the virtual time of the task being run, or of the last one.
func (s *Scheduler) Now() time.Duration { return s.now }

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int { return s.q.Len() }

// Post queues fn to run on the loop. Safe for concurrent use.
func (s *Scheduler) Post(fn Task) {
	s.mu.Lock()
	s.inbox = append(s.inbox, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// After runs fn once, d from now.
func (s *Scheduler) After(d time.Duration, fn Task) *Timer {
	t := &Timer{s: s, fn: fn}
	t.arm(s.now + d)
	return t
}

// Every runs fn repeatedly. Each interval is period plus a fresh uniform draw
// in [0, jitter), measured from the previous deadline so late runs do not
// accumulate drift.
func (s *Scheduler) Every(period, jitter time.Duration, fn Task) *Timer {
	t := &Timer{s: s, fn: fn, period: period, jitter: jitter}
	t.arm(s.now + t.interval())
	return t
}

func (s *Scheduler) drainInbox() bool {
	s.mu.Lock()
	tasks := s.inbox
	s.inbox = nil
	s.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
	return len(tasks) > 0
}

// runNext pops and runs the earliest timer if it is due by limit.
func (s *Scheduler) runNext(limit time.Duration) bool {
	it := s.q.peek()
	if it == nil || it.at > limit {
		return false
	}
	heap.Pop(&s.q)
	t := it.timer
	t.item = nil
	if it.at > s.now {
		s.now = it.at
	}
	if t.period > 0 {
		t.arm(it.at + t.interval())
	}
	t.fn()
	return true
}

func (s *Scheduler) locked(fn func() bool) bool {
	if s.lock != nil {
		s.lock.Lock()
		defer s.lock.Unlock()
	}
	return fn()
}

// Step runs posted work and then the earliest timer. It reports whether
// anything ran.
func (s *Scheduler) Step() bool {
	return s.locked(func() bool {
		posted := s.drainInbox()
		return s.runNext(maxDuration) || posted
	})
}

const maxDuration = time.Duration(1<<63 - 1)

// RunUntil runs every task due up to limit as fast as possible and leaves the
// clock at limit.
func (s *Scheduler) RunUntil(limit time.Duration) {
	s.locked(func() bool {
		s.drainInbox()
		for s.runNext(limit) {
			s.drainInbox()
		}
		if limit > s.now {
			s.now = limit
		}
		return true
	})
}

// RunFor advances the clock by d.
func (s *Scheduler) RunFor(d time.Duration) { s.RunUntil(s.now + d) }

// Run paces virtual time against the wall clock, speed times faster than
// real time, until ctx is cancelled. A speed of zero or less runs as fast as
// possible.
func (s *Scheduler) Run(ctx context.Context, speed float64) error {
	startWall := time.Now()
	startVirt := s.now
	wallFor := func(v time.Duration) time.Time {
		return startWall.Add(time.Duration(float64(v-startVirt) / speed))
	}

	var sleep *time.Timer
	defer func() {
		if sleep != nil {
			sleep.Stop()
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.locked(s.drainInbox)

		next := s.q.peek()
		if next != nil && speed <= 0 {
			s.locked(func() bool { return s.runNext(next.at) })
			continue
		}
		var fire <-chan time.Time
		if next != nil {
			wait := time.Until(wallFor(next.at))
			if wait <= 0 {
				at := next.at
				s.locked(func() bool { return s.runNext(at) })
				continue
			}
			if sleep == nil {
				sleep = time.NewTimer(wait)
			} else {
				sleep.Reset(wait)
			}
			fire = sleep.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-fire:
		}
	}
}

// Timer is a handle on armed work. Timers are not safe for concurrent use;
// call them from tasks or before the loop starts.
type Timer struct {
	s              *Scheduler
	fn             Task
	item           *item
	period, jitter time.Duration
}

func (t *Timer) interval() time.Duration {
	d := t.period
	if t.jitter > 0 {
		d += time.Duration(t.s.rng.Int63n(int64(t.jitter)))
	}
	return d
}

func (t *Timer) arm(at time.Duration) {
	t.s.seq++
	if t.item != nil {
		t.item.at = at
		t.item.seq = t.s.seq
		heap.Fix(&t.s.q, t.item.index)
		return
	}
	t.item = &item{at: at, seq: t.s.seq, timer: t}
	heap.Push(&t.s.q, t.item)
}

// Reset re-arms the timer to fire d from now, replacing any pending run.
// A periodic timer keeps its period after that run.
func (t *Timer) Reset(d time.Duration) { t.arm(t.s.now + d) }

// Stop disarms the timer and reports whether it was pending.
func (t *Timer) Stop() bool {
	if t.item == nil {
		return false
	}
	heap.Remove(&t.s.q, t.item.index)
	t.item = nil
	t.period = 0
	return true
}

// Pending reports whether the timer is armed.
func (t *Timer) Pending() bool { return t.item != nil }

// Deadline returns the virtual time the timer fires at, if pending.
func (t *Timer) Deadline() (time.Duration, bool) {
	if t.item == nil {
		return 0, false
	}
	return t.item.at, true
}
