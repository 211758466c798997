package driver_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/internal/metrics"
	"github.com/oMatheuss/lina/machine"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	faults []driver.Fault
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnOutputAppended(chunk string) { r.add("out:" + chunk) }
func (r *recorder) OnAwaitingInput()              { r.add("await") }
func (r *recorder) OnRunCompleted()               { r.add("done") }
func (r *recorder) OnRunFaulted(f driver.Fault) {
	r.mu.Lock()
	r.faults = append(r.faults, f)
	r.mu.Unlock()
	r.add("fault:" + f.Kind.String())
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	d       *driver.Driver
	rec     *recorder
	metrics *metrics.Metrics
	factory *stubFactory
}

func newHarness(t *testing.T, sched yield.Scheduler, machines []*stubMachine, opts ...driver.Option) *harness {
	t.Helper()
	f := &stubFactory{machines: machines}
	m := metrics.New(nil)
	sessions := session.NewManager(f.New,
		session.WithLauncher(func(fn func()) { fn() }),
		session.WithMetrics(m))
	rec := &recorder{}
	opts = append([]driver.Option{driver.WithListener(rec), driver.WithMetrics(m)}, opts...)
	return &harness{
		d:       driver.New(sessions, sched, opts...),
		rec:     rec,
		metrics: m,
		factory: f,
	}
}

func ticker() *stubMachine {
	loop := emit(machine.More(0), "tick\n")
	return &stubMachine{name: "ticker", start: emit(machine.More(0)), loop: &loop}
}

func TestScenarioOutputAcrossQuanta(t *testing.T) {
	m := &stubMachine{
		start: emit(machine.More(0)),
		resumes: []step{
			emit(machine.More(1000)),
			emit(machine.More(1000), "ola\n"),
			emit(machine.Done(4)),
		},
	}
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{m})

	h.d.Start("programa ola saida(\"ola\") fim")
	assert.Equal(t, driver.Running, h.d.State())

	// begin plus two scheduled quanta
	assert.Equal(t, 3, q.Drain(0))

	assert.Equal(t, "ola\n", h.d.Output())
	assert.Equal(t, driver.Completed, h.d.State())
	assert.Equal(t, 3, m.resumeCount())
	assert.Equal(t, []string{"out:ola\n", "done"}, h.rec.list())
	assert.Equal(t, int32(1), m.disposed.Load())
	assert.Zero(t, m.misuse.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Runs.WithLabelValues("completed")))
}

func TestScenarioInputEchoedBeforeProgramOutput(t *testing.T) {
	m := &stubMachine{
		start: emit(machine.More(0)),
		resumes: []step{
			emit(machine.Blocked(3)),
			emit(machine.Done(9), "valor: 5\n"),
		},
	}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("programa p inteiro n := 0 entrada(n) saida(\"valor: \", n) fim")
	require.Equal(t, driver.AwaitingInput, h.d.State())
	assert.Equal(t, "", h.d.Output())

	require.NoError(t, h.d.SubmitInput("5"))

	assert.Equal(t, "5\n"+"valor: 5\n", h.d.Output())
	assert.Equal(t, driver.Completed, h.d.State())
	assert.Equal(t, []string{"5"}, m.submitted())
	assert.Equal(t, []string{"await", "out:5\n", "out:valor: 5\n", "done"}, h.rec.list())
}

func TestScenarioCompileFault(t *testing.T) {
	const diag = "erro de sintaxe na linha 3"
	m := &stubMachine{start: emit(machine.Fault(0, diag))}
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{m})

	h.d.Start("programa quebrado")

	// only the acquisition callback, never a quantum
	assert.Equal(t, 1, q.Drain(0))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, m.resumeCount())
	assert.Equal(t, driver.Faulted, h.d.State())
	assert.Contains(t, h.d.Output(), diag)
	require.Len(t, h.rec.faults, 1)
	assert.Equal(t, driver.FaultCompile, h.rec.faults[0].Kind)
	assert.Equal(t, diag, h.rec.faults[0].Diagnostic)
	assert.Equal(t, int32(1), m.disposed.Load())
}

func TestRuntimeFaultKeepsPartialOutput(t *testing.T) {
	m := &stubMachine{
		start: emit(machine.More(0)),
		resumes: []step{
			emit(machine.More(1000), "parcial\n"),
			emit(machine.Fault(2, "erro de execução na linha 4: divisão por zero")),
		},
	}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")

	assert.Equal(t, driver.Faulted, h.d.State())
	assert.Equal(t, "parcial\nerro de execução na linha 4: divisão por zero\n", h.d.Output())
	require.Len(t, h.rec.faults, 1)
	assert.Equal(t, driver.FaultRuntime, h.rec.faults[0].Kind)
	assert.Equal(t, uint64(1), h.rec.faults[0].Generation)
}

func TestOutputIsConcatenationInCallOrder(t *testing.T) {
	m := &stubMachine{
		start: emit(machine.More(0), "a"),
		resumes: []step{
			emit(machine.More(10), "b", "c"),
			emit(machine.Blocked(1), "d"),
			emit(machine.More(5), "e"),
			emit(machine.Blocked(1)),
			emit(machine.Done(1), "f\n"),
		},
	}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")
	require.NoError(t, h.d.SubmitInput("um"))
	require.NoError(t, h.d.SubmitInput("dois\r\n"))

	assert.Equal(t, "abcdum\nedois\nf\n", h.d.Output())
	assert.Equal(t, []string{"a", "b", "c", "d", "um\n", "e", "dois\n", "f\n"},
		h.d.Channel().Chunks())
	assert.Equal(t, []string{"um", "dois"}, m.submitted())
}

func TestRestartWhileRunningDisposesOnce(t *testing.T) {
	first := ticker()
	second := &stubMachine{start: emit(machine.More(0)), resumes: []step{emit(machine.Done(1), "fim\n")}}
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{first, second})

	g1 := h.d.Start("loop")
	require.True(t, q.Step())
	require.Equal(t, 1, q.Len(), "next quantum scheduled")
	resumed := first.resumeCount()

	g2 := h.d.Start("fim")
	assert.Greater(t, g2, g1)
	assert.Equal(t, int32(1), first.disposed.Load())

	q.Drain(0)

	assert.Equal(t, resumed, first.resumeCount(), "stale quantum must not resume the old handle")
	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Zero(t, first.misuse.Load())
	assert.Equal(t, "tick\nfim\n", h.d.Output())
	assert.Equal(t, driver.Completed, h.d.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StaleCallbacks))
}

func TestRestartWhileAwaitingInputDisposesOnce(t *testing.T) {
	first := &stubMachine{start: emit(machine.More(0)), resumes: []step{emit(machine.Blocked(1), "nome? ")}}
	second := &stubMachine{start: emit(machine.More(0)), resumes: []step{emit(machine.Blocked(1))}}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{first, second})

	h.d.Start("a")
	require.Equal(t, driver.AwaitingInput, h.d.State())
	h.d.Start("b")

	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Equal(t, driver.AwaitingInput, h.d.State())
	require.NoError(t, h.d.SubmitInput("x"))
	assert.Empty(t, first.submitted())
	assert.Equal(t, []string{"x"}, second.submitted())
	assert.Zero(t, first.misuse.Load())
}

func TestSupersededAcquisitionIsNeverStarted(t *testing.T) {
	first := ticker()
	second := &stubMachine{start: emit(machine.Done(0), "ok\n")}
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{first, second})

	h.d.Start("a")
	h.d.Start("b")
	q.Drain(0)

	assert.Equal(t, 0, first.startCount())
	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Equal(t, "ok\n", h.d.Output())
	assert.Equal(t, driver.Completed, h.d.State())
}

func TestSubmitRejectedOutsideAwaitingInput(t *testing.T) {
	m := ticker()
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{m})

	err := h.d.SubmitInput("cedo")
	require.ErrorIs(t, err, driver.ErrNotAwaitingInput)
	assert.Equal(t, driver.Idle, h.d.State())
	assert.Equal(t, "", h.d.Output())

	h.d.Start("loop")
	q.Step()
	before := h.d.Output()
	events := len(h.rec.list())

	err = h.d.SubmitInput("durante")
	require.ErrorIs(t, err, driver.ErrNotAwaitingInput)
	assert.Equal(t, driver.Running, h.d.State())
	assert.Equal(t, before, h.d.Output())
	assert.Len(t, h.rec.list(), events)
	assert.Empty(t, m.submitted())
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.InputRejected))
}

func TestSubmitRejectedAfterCompletion(t *testing.T) {
	m := &stubMachine{start: emit(machine.Done(0))}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")
	require.Equal(t, driver.Completed, h.d.State())
	assert.ErrorIs(t, h.d.SubmitInput("tarde"), driver.ErrNotAwaitingInput)
	assert.Equal(t, driver.Completed, h.d.State())
	assert.Zero(t, m.misuse.Load())
}

func TestQuantumNeverExceedsBudget(t *testing.T) {
	m := ticker()
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{m}, driver.WithStepBudget(64))

	h.d.Start("enquanto verdadeiro faca fim")
	ran := q.Drain(50)

	assert.Equal(t, 50, ran)
	assert.Equal(t, 1, q.Len(), "exactly one quantum in flight")
	assert.Equal(t, driver.Running, h.d.State())
	for i, steps := range m.stepCounts() {
		assert.LessOrEqual(t, steps, 64, "quantum %d", i)
	}
	assert.Equal(t, 50, m.resumeCount())
	assert.Equal(t, 50, strings.Count(h.d.Output(), "tick\n"))

	h.d.Shutdown()
	assert.Equal(t, int32(1), m.disposed.Load())
	q.Drain(0)
	assert.Equal(t, 50, m.resumeCount())
}

func TestDefaultStepBudget(t *testing.T) {
	h := newHarness(t, yield.NewQueue(), nil, driver.WithStepBudget(0))
	assert.Equal(t, driver.DefaultStepBudget, h.d.StepBudget())
}

func TestClearDoesNotAffectScheduling(t *testing.T) {
	m := ticker()
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{m})

	h.d.Start("loop")
	q.Step()
	require.Equal(t, "tick\n", h.d.Output())

	h.d.Clear()
	assert.Equal(t, "", h.d.Output())
	assert.Equal(t, driver.Running, h.d.State())
	assert.Equal(t, 1, q.Len())

	q.Step()
	assert.Equal(t, "tick\n", h.d.Output())
	assert.Equal(t, 2, m.resumeCount())
}

func TestClearWhileAwaitingInput(t *testing.T) {
	m := &stubMachine{
		start:   emit(machine.More(0)),
		resumes: []step{emit(machine.Blocked(1), "n? "), emit(machine.Done(1))},
	}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")
	h.d.Clear()
	assert.Equal(t, driver.AwaitingInput, h.d.State())
	require.NoError(t, h.d.SubmitInput("7"))
	assert.Equal(t, "7\n", h.d.Output())
}

func TestAcquisitionFaultLeavesDriverUsable(t *testing.T) {
	m := &stubMachine{start: emit(machine.Done(0), "ok\n")}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{nil, m})

	h.d.Start("x")

	assert.Equal(t, driver.Idle, h.d.State())
	require.Len(t, h.rec.faults, 1)
	assert.Equal(t, driver.FaultAcquire, h.rec.faults[0].Kind)
	assert.Contains(t, h.d.Output(), session.ErrAcquire.Error())
	assert.ErrorIs(t, h.d.SubmitInput("x"), driver.ErrNotAwaitingInput)

	h.d.Start("x")
	assert.Equal(t, driver.Completed, h.d.State())
	assert.True(t, strings.HasSuffix(h.d.Output(), "ok\n"))
}

func TestShutdownDisposesAndResets(t *testing.T) {
	m := &stubMachine{start: emit(machine.More(0)), resumes: []step{emit(machine.Blocked(1))}}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")
	require.Equal(t, driver.AwaitingInput, h.d.State())

	h.d.Shutdown()
	h.d.Shutdown()

	assert.Equal(t, driver.Idle, h.d.State())
	assert.Equal(t, int32(1), m.disposed.Load())
	assert.ErrorIs(t, h.d.SubmitInput("x"), driver.ErrNotAwaitingInput)
	assert.Zero(t, m.misuse.Load())
}

func TestListenerMayRestartFromCompletion(t *testing.T) {
	first := &stubMachine{start: emit(machine.Done(0), "1\n")}
	second := &stubMachine{start: emit(machine.Done(0), "2\n")}
	f := &stubFactory{machines: []*stubMachine{first, second}}
	sessions := session.NewManager(f.New, session.WithLauncher(func(fn func()) { fn() }))

	var d *driver.Driver
	restarted := false
	d = driver.New(sessions, yield.NewImmediate(), driver.WithListener(driver.ListenerFuncs{
		Completed: func() {
			if !restarted {
				restarted = true
				d.Start("de novo")
			}
		},
	}))

	d.Start("x")

	assert.Equal(t, "1\n2\n", d.Output())
	assert.Equal(t, uint64(2), d.Generation())
	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Equal(t, int32(1), second.disposed.Load())
}

func TestSnapshot(t *testing.T) {
	m := &stubMachine{start: emit(machine.More(0)), resumes: []step{emit(machine.Blocked(1), "? ")}}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")
	snap := h.d.Snapshot()

	assert.Equal(t, driver.AwaitingInput, snap.State)
	assert.Equal(t, "awaiting-input", snap.StateName)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, "? ", snap.Output)
}

// holdCore parks the goroutine logging "run start" for generation 1 until
// hold is closed.
type holdCore struct {
	hold    chan struct{}
	reached chan struct{}
}

func (c *holdCore) Enabled(zapcore.Level) bool        { return true }
func (c *holdCore) With([]zapcore.Field) zapcore.Core { return c }
func (c *holdCore) Sync() error                       { return nil }

func (c *holdCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(e, c)
}

func (c *holdCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	if e.Message != "run start" {
		return nil
	}
	for _, f := range fields {
		if f.Key == "generation" && f.Integer == 1 {
			close(c.reached)
			<-c.hold
		}
	}
	return nil
}

func TestOverlappingStartsKeepNewestRun(t *testing.T) {
	first := &stubMachine{start: emit(machine.Done(0), "primeiro\n")}
	second := &stubMachine{start: emit(machine.Done(0), "segundo\n")}
	core := &holdCore{hold: make(chan struct{}), reached: make(chan struct{})}
	q := yield.NewQueue()
	h := newHarness(t, q, []*stubMachine{first, second}, driver.WithLogger(zap.New(core)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.d.Start("a")
	}()
	<-core.reached
	go func() {
		defer wg.Done()
		h.d.Start("b")
	}()
	// give the second Start time to overtake the parked first one
	time.Sleep(50 * time.Millisecond)
	close(core.hold)
	wg.Wait()

	q.Drain(0)

	assert.Equal(t, uint64(2), h.d.Generation())
	assert.Equal(t, driver.Completed, h.d.State())
	assert.Equal(t, "segundo\n", h.d.Output())
	assert.Equal(t, 0, first.startCount())
	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Equal(t, int32(1), second.disposed.Load())
	assert.Zero(t, first.misuse.Load())
	assert.Zero(t, second.misuse.Load())
}

func TestUnknownStatusFaultIsWrittenToTranscript(t *testing.T) {
	m := &stubMachine{
		start:   emit(machine.More(0)),
		resumes: []step{emit(machine.Result{Status: machine.Status(42), Steps: 1}, "x")},
	}
	h := newHarness(t, yield.NewImmediate(), []*stubMachine{m})

	h.d.Start("x")

	assert.Equal(t, driver.Faulted, h.d.State())
	assert.Equal(t, "xunknown machine status status(42)\n", h.d.Output())
	require.Len(t, h.rec.faults, 1)
	assert.Equal(t, driver.FaultRuntime, h.rec.faults[0].Kind)
	assert.Equal(t, []string{"out:x", "out:unknown machine status status(42)\n", "fault:runtime"}, h.rec.list())
	assert.Equal(t, int32(1), m.disposed.Load())
}
