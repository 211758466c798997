package driver_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/oMatheuss/lina/machine"
)

// step is one scripted Start or Resume outcome plus the chunks it writes.
type step struct {
	res machine.Result
	out []string
}

func emit(res machine.Result, out ...string) step {
	return step{res: res, out: out}
}

// stubMachine replays a script. With loop set it never finishes: every
// Resume burns the whole budget and writes loop.out.
type stubMachine struct {
	name    string
	start   step
	resumes []step
	loop    *step

	mu       sync.Mutex
	pending  []string
	starts   int
	budgets  []int
	steps    []int
	inputs   []string
	disposed atomic.Int32
	misuse   atomic.Int32
}

func (m *stubMachine) Start(string) machine.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkLive()
	m.starts++
	m.pending = append(m.pending, m.start.out...)
	return m.start.res
}

func (m *stubMachine) Resume(budget int) machine.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkLive()
	m.budgets = append(m.budgets, budget)

	var s step
	switch {
	case m.loop != nil:
		s = *m.loop
		s.res = machine.More(budget)
	case len(m.resumes) > 0:
		s = m.resumes[0]
		m.resumes = m.resumes[1:]
	default:
		s = emit(machine.Fault(0, "script exhausted"))
	}
	m.steps = append(m.steps, s.res.Steps)
	m.pending = append(m.pending, s.out...)
	return s.res
}

func (m *stubMachine) SubmitInput(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkLive()
	m.inputs = append(m.inputs, line)
}

func (m *stubMachine) TakeOutput() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkLive()
	out := m.pending
	m.pending = nil
	return out
}

func (m *stubMachine) Dispose() {
	m.disposed.Add(1)
}

// checkLive records calls made on a disposed handle.
func (m *stubMachine) checkLive() {
	if m.disposed.Load() > 0 {
		m.misuse.Add(1)
	}
}

func (m *stubMachine) resumeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.budgets)
}

func (m *stubMachine) startCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *stubMachine) submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

func (m *stubMachine) stepCounts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.steps...)
}

// stubFactory hands out machines in order. A nil entry fails acquisition.
type stubFactory struct {
	mu       sync.Mutex
	machines []*stubMachine
	calls    int
}

var errNoMachine = errors.New("wasm module failed to instantiate")

func (f *stubFactory) New(context.Context) (machine.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.machines) {
		return nil, errNoMachine
	}
	m := f.machines[f.calls]
	f.calls++
	if m == nil {
		return nil, errNoMachine
	}
	return m, nil
}
