// Package session owns the lifetime of VM handles. A Manager holds at most
// one live machine.Machine; opening a new session always disposes the previous
// one first, and a handle whose acquisition was cancelled is disposed the
// moment it is constructed instead of being left for the garbage collector.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oMatheuss/lina/internal/logging"
	"github.com/oMatheuss/lina/internal/metrics"
	"github.com/oMatheuss/lina/machine"
)

var (
	ErrAcquire   = errors.New("session acquisition failed")
	ErrCancelled = errors.New("session acquisition cancelled")
)

// ReadyFunc receives the outcome of an acquisition. It is not called for a
// cancelled ticket. It runs on the launcher's goroutine.
type ReadyFunc func(h machine.Machine, err error)

type Manager struct {
	factory machine.Factory
	launch  func(fn func())
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	current machine.Machine
	id      string
	pending *Ticket
}

type Option func(*Manager)

// WithLauncher replaces the goroutine used for acquisition. Tests pass a
// synchronous launcher.
func WithLauncher(launch func(fn func())) Option {
	return func(m *Manager) { m.launch = launch }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = logging.OrNop(l) }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(factory machine.Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		launch:  func(fn func()) { go fn() },
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open disposes the current handle, cancels any acquisition still in flight
// and starts acquiring a fresh handle.
func (m *Manager) Open(ctx context.Context, ready ReadyFunc) *Ticket {
	t := newTicket(ctx)

	m.mu.Lock()
	prev, prevID, prevPending := m.detachLocked()
	m.pending = t
	m.mu.Unlock()

	if prevPending != nil {
		prevPending.Cancel()
	}
	m.dispose(prev, prevID)

	m.log.Debug("session acquiring", zap.String("session", t.ID))
	m.launch(func() { m.acquire(t, ready) })
	return t
}

func (m *Manager) acquire(t *Ticket, ready ReadyFunc) {
	h, err := m.factory(t.ctx)

	m.mu.Lock()
	if t.Cancelled() || m.pending != t {
		m.mu.Unlock()
		t.finish()
		m.metrics.AcquisitionCancelled()
		if h != nil {
			h.Dispose()
			m.log.Debug("session cancelled, disposed orphan handle", zap.String("session", t.ID))
		}
		return
	}
	m.pending = nil
	if err != nil {
		m.mu.Unlock()
		t.finish()
		m.metrics.AcquisitionFailed()
		m.log.Warn("session acquisition failed", zap.String("session", t.ID), zap.Error(err))
		ready(nil, fmt.Errorf("%w: %w", ErrAcquire, err))
		return
	}
	if h == nil {
		m.mu.Unlock()
		t.finish()
		m.metrics.AcquisitionFailed()
		ready(nil, fmt.Errorf("%w: factory returned no machine", ErrAcquire))
		return
	}
	m.current = h
	m.id = t.ID
	m.mu.Unlock()
	t.finish()

	m.metrics.SessionOpened()
	m.log.Debug("session open", zap.String("session", t.ID))
	ready(h, nil)
}

// Current returns the live handle, or nil when no session is open.
func (m *Manager) Current() machine.Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ID returns the id of the live session, or "".
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Close cancels a pending acquisition and disposes the current handle. It is
// idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	h, id, pending := m.detachLocked()
	m.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}
	m.dispose(h, id)
}

// Release disposes h if it is still the current handle. It reports whether
// it did.
func (m *Manager) Release(h machine.Machine) bool {
	if h == nil {
		return false
	}
	m.mu.Lock()
	if m.current != h {
		m.mu.Unlock()
		return false
	}
	id := m.id
	m.current = nil
	m.id = ""
	m.mu.Unlock()

	m.dispose(h, id)
	return true
}

func (m *Manager) detachLocked() (machine.Machine, string, *Ticket) {
	h, id, pending := m.current, m.id, m.pending
	m.current = nil
	m.id = ""
	m.pending = nil
	return h, id, pending
}

func (m *Manager) dispose(h machine.Machine, id string) {
	if h == nil {
		return
	}
	h.Dispose()
	m.metrics.SessionClosed()
	m.log.Debug("session disposed", zap.String("session", id))
}

// Ticket identifies one acquisition and lets the caller cancel it.
type Ticket struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newTicket(parent context.Context) *Ticket {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Ticket{
		ID:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel marks the acquisition cancelled. A handle constructed afterwards is
// disposed without being exposed.
func (t *Ticket) Cancel() {
	t.cancel()
}

func (t *Ticket) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Err returns ErrCancelled once the ticket is cancelled.
func (t *Ticket) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Done closes when the acquisition has finished, whatever its outcome.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

func (t *Ticket) finish() {
	t.once.Do(func() { close(t.done) })
}
