// Package yield provides cooperative scheduling points for hosts that must
// regain control between bounded units of work. A Scheduler runs a callback
// "soon": after the host has had a chance to process its own pending events.
package yield

import "sync"

// Scheduler is the host's yield primitive.
type Scheduler interface {
	ScheduleSoon(fn func())
}

// Func adapts a plain function to Scheduler.
type Func func(fn func())

func (f Func) ScheduleSoon(fn func()) {
	f(fn)
}

// Immediate runs callbacks before ScheduleSoon returns. Nested calls are
// queued and run by the outermost call, so a chain of callbacks does not grow
// the stack.
type Immediate struct {
	mu      sync.Mutex
	running bool
	queue   []func()
}

func NewImmediate() *Immediate {
	return &Immediate{}
}

func (s *Immediate) ScheduleSoon(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		next()
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}

// Queue holds callbacks until the host pumps it.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) ScheduleSoon(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Step runs the oldest pending callback. It reports false when nothing was
// pending.
func (q *Queue) Step() bool {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.mu.Unlock()
	fn()
	return true
}

// Drain runs callbacks, including ones scheduled while draining, until the
// queue is empty or limit callbacks ran. A non-positive limit means no limit.
func (q *Queue) Drain(limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		if !q.Step() {
			break
		}
		n++
	}
	return n
}
