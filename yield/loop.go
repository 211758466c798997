package yield

import (
	"context"
	"sync"
)

// Loop is a single goroutine event loop. Every callback runs on that
// goroutine, in scheduling order, which gives goroutine-based hosts the same
// single-threaded model a browser event loop has.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started sync.Once
}

func NewLoop(parent context.Context) *Loop {
	ctx, cancel := context.WithCancel(parent)
	return &Loop{
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. It is idempotent.
func (l *Loop) Start() *Loop {
	l.started.Do(func() { go l.run() })
	return l
}

// ScheduleSoon is safe to call from any goroutine, including the loop's own.
// Callbacks scheduled after Stop are dropped.
func (l *Loop) ScheduleSoon(fn func()) {
	if l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it. It returns ctx.Err() if the loop
// stops or ctx ends first. Calling it from the loop goroutine deadlocks.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.ScheduleSoon(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return l.ctx.Err()
	}
}

func (l *Loop) Stop() {
	l.cancel()
}

// Done closes once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			if l.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}
