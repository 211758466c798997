// Package driver runs a machine.Machine cooperatively. A run is advanced in
// quanta of at most StepBudget instructions; between quanta the driver hands
// control back to the host through a yield.Scheduler, so a program of any
// length never blocks the host for more than one quantum.
//
// Hosts normally call Start, SubmitInput, Clear and Shutdown from their own
// loop, the goroutine the Scheduler runs callbacks on, but every method is
// safe for concurrent use.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/oMatheuss/lina/internal/logging"
	"github.com/oMatheuss/lina/internal/metrics"
	"github.com/oMatheuss/lina/machine"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

const DefaultStepBudget = 1000

type Driver struct {
	sessions *session.Manager
	sched    yield.Scheduler
	io       *Channel
	listener Listener
	budget   int
	ctx      context.Context
	log      *zap.Logger
	metrics  *metrics.Metrics

	// startMu pairs a generation with its session acquisition, so
	// concurrent Starts open sessions in generation order.
	startMu sync.Mutex
	// vmMu is held across every call into the borrowed handle so Start and
	// Shutdown cannot dispose it mid-quantum. Lock order: startMu, vmMu, mu.
	vmMu sync.Mutex

	mu        sync.Mutex
	state     State
	gen       uint64
	scheduled bool
	handle    machine.Machine
}

type Option func(*Driver)

// WithStepBudget sets the per-quantum instruction bound. Non-positive values
// keep the default.
func WithStepBudget(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.budget = n
		}
	}
}

func WithListener(l Listener) Option {
	return func(d *Driver) {
		if l != nil {
			d.listener = l
		}
	}
}

func WithChannel(c *Channel) Option {
	return func(d *Driver) {
		if c != nil {
			d.io = c
		}
	}
}

// WithContext bounds session acquisition.
func WithContext(ctx context.Context) Option {
	return func(d *Driver) { d.ctx = ctx }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

func New(sessions *session.Manager, sched yield.Scheduler, opts ...Option) *Driver {
	d := &Driver{
		sessions: sessions,
		sched:    sched,
		io:       NewChannel(),
		listener: ListenerFuncs{},
		budget:   DefaultStepBudget,
		ctx:      context.Background(),
		log:      zap.NewNop(),
		state:    Idle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start supersedes whatever run is in progress and begins a new one. The
// previous handle is disposed before this returns; a quantum it had scheduled
// becomes a no-op. It returns the new run generation.
func (d *Driver) Start(source string) uint64 {
	d.startMu.Lock()
	d.vmMu.Lock()
	d.mu.Lock()
	d.gen++
	gen := d.gen
	prev := d.state
	d.state = Running
	d.scheduled = false
	d.handle = nil
	d.mu.Unlock()
	d.sessions.Close()
	d.vmMu.Unlock()

	d.log.Debug("run start", zap.Uint64("generation", gen), zap.Stringer("previous", prev))

	// A synchronous launcher reports before Open returns; that callback is
	// held until startMu is released so a listener may call Start again.
	var (
		readyMu  sync.Mutex
		opened   bool
		deferred func()
	)
	d.sessions.Open(d.ctx, func(h machine.Machine, err error) {
		fn := func() { d.begin(gen, source, h, err) }
		readyMu.Lock()
		if !opened {
			deferred = fn
			readyMu.Unlock()
			return
		}
		readyMu.Unlock()
		d.sched.ScheduleSoon(fn)
	})
	readyMu.Lock()
	opened = true
	fn := deferred
	readyMu.Unlock()
	d.startMu.Unlock()

	if fn != nil {
		d.sched.ScheduleSoon(fn)
	}
	return gen
}

func (d *Driver) begin(gen uint64, source string, h machine.Machine, err error) {
	d.vmMu.Lock()
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		d.vmMu.Unlock()
		d.metrics.StaleCallback()
		d.sessions.Release(h)
		return
	}
	if err != nil {
		d.state = Idle
		f := Fault{Kind: FaultAcquire, Diagnostic: err.Error(), Generation: gen}
		chunk := terminate(f.Diagnostic)
		d.io.Append(chunk)
		d.mu.Unlock()
		d.vmMu.Unlock()

		d.metrics.RunFinished("acquire_failed")
		d.log.Warn("run could not acquire a machine", zap.Uint64("generation", gen), zap.Error(err))
		d.dispatch([]event{outputEvent(chunk), faultedEvent(f)})
		return
	}
	d.handle = h
	d.mu.Unlock()

	res := h.Start(source)
	kind := FaultCompile
	steps := res.Steps
	if res.Status == machine.MoreWork {
		res = h.Resume(d.budget)
		kind = FaultRuntime
		d.checkBudget(gen, res)
		steps += res.Steps
	}
	out := h.TakeOutput()
	d.vmMu.Unlock()

	res.Steps = steps
	d.commit(gen, h, res, out, kind, nil)
}

// fire runs one scheduled quantum.
func (d *Driver) fire(gen uint64) {
	d.vmMu.Lock()
	d.mu.Lock()
	if gen != d.gen || d.state != Running || !d.scheduled || d.handle == nil {
		d.mu.Unlock()
		d.vmMu.Unlock()
		d.metrics.StaleCallback()
		d.log.Debug("stale quantum ignored", zap.Uint64("generation", gen))
		return
	}
	d.scheduled = false
	h := d.handle
	d.mu.Unlock()

	res := h.Resume(d.budget)
	out := h.TakeOutput()
	d.vmMu.Unlock()

	d.checkBudget(gen, res)
	d.commit(gen, h, res, out, FaultRuntime, nil)
}

// SubmitInput answers the pending read. It echoes the line to the
// transcript, delivers it and resumes the machine immediately. Outside
// AwaitingInput it returns ErrNotAwaitingInput and changes nothing.
func (d *Driver) SubmitInput(line string) error {
	line = strings.TrimRight(line, "\r\n")

	d.vmMu.Lock()
	d.mu.Lock()
	if d.state != AwaitingInput || d.handle == nil {
		state := d.state
		d.mu.Unlock()
		d.vmMu.Unlock()
		d.metrics.RejectInput()
		return fmt.Errorf("%w (state %s)", ErrNotAwaitingInput, state)
	}
	gen := d.gen
	h := d.handle
	d.state = Running
	echo := d.io.Echo(line)
	d.mu.Unlock()

	h.SubmitInput(line)
	res := h.Resume(d.budget)
	out := h.TakeOutput()
	d.vmMu.Unlock()

	d.checkBudget(gen, res)
	d.commit(gen, h, res, out, FaultRuntime, []event{outputEvent(echo)})
	return nil
}

// commit applies a quantum's result. Output from a superseded generation is
// dropped along with its handle.
func (d *Driver) commit(gen uint64, h machine.Machine, res machine.Result, out []string, kind FaultKind, lead []event) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		d.metrics.Discarded(len(out))
		d.log.Debug("superseded quantum discarded",
			zap.Uint64("generation", gen), zap.Int("chunks", len(out)))
		return
	}

	events := make([]event, 0, len(lead)+len(out)+2)
	events = append(events, lead...)
	for _, chunk := range out {
		if chunk == "" {
			continue
		}
		d.io.Append(chunk)
		events = append(events, outputEvent(chunk))
	}

	switch res.Status {
	case machine.MoreWork, machine.AwaitingInput, machine.Completed, machine.Faulted:
	default:
		res = machine.Fault(res.Steps, fmt.Sprintf("unknown machine status %s", res.Status))
		kind = FaultRuntime
	}

	release := res.Terminal()
	schedule := false
	switch res.Status {
	case machine.MoreWork:
		d.state = Running
		d.scheduled = true
		schedule = true
	case machine.AwaitingInput:
		d.state = AwaitingInput
		events = append(events, awaitingEvent())
	case machine.Completed:
		d.state = Completed
		d.handle = nil
		events = append(events, completedEvent())
	case machine.Faulted:
		d.state = Faulted
		d.handle = nil
		f := Fault{Kind: kind, Diagnostic: res.Diagnostic, Generation: gen}
		chunk := terminate(res.Diagnostic)
		d.io.Append(chunk)
		events = append(events, outputEvent(chunk), faultedEvent(f))
	}
	state := d.state
	d.mu.Unlock()

	d.metrics.ObserveQuantum(res.Steps)
	d.log.Debug("quantum",
		zap.Uint64("generation", gen),
		zap.Int("steps", res.Steps),
		zap.Stringer("status", res.Status),
		zap.Stringer("state", state))

	if release {
		d.sessions.Release(h)
		d.metrics.RunFinished(state.String())
	}
	d.dispatch(events)
	if schedule {
		d.sched.ScheduleSoon(func() { d.fire(gen) })
	}
}

func (d *Driver) checkBudget(gen uint64, res machine.Result) {
	if res.Steps > d.budget {
		d.log.Warn("machine exceeded step budget",
			zap.Uint64("generation", gen), zap.Int("steps", res.Steps), zap.Int("budget", d.budget))
	}
}

func (d *Driver) dispatch(events []event) {
	for _, ev := range events {
		ev(d.listener)
	}
}

// Clear empties the transcript. The run, if any, is unaffected.
func (d *Driver) Clear() {
	d.io.Clear()
}

// Shutdown tears the driver down: the run is invalidated, any acquisition in
// flight is cancelled and the handle is disposed. The driver can be started
// again afterwards.
func (d *Driver) Shutdown() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	d.vmMu.Lock()
	d.mu.Lock()
	d.gen++
	d.state = Idle
	d.scheduled = false
	d.handle = nil
	d.mu.Unlock()
	d.sessions.Close()
	d.vmMu.Unlock()
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

func (d *Driver) StepBudget() int {
	return d.budget
}

func (d *Driver) Channel() *Channel {
	return d.io
}

func (d *Driver) Output() string {
	return d.io.String()
}

// Snapshot is a consistent view for displays.
type Snapshot struct {
	State      State  `json:"-"`
	StateName  string `json:"state"`
	Generation uint64 `json:"generation"`
	Output     string `json:"output"`
}

func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		State:      d.state,
		StateName:  d.state.String(),
		Generation: d.gen,
		Output:     d.io.String(),
	}
}

func terminate(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
