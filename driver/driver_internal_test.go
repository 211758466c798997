package driver

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oMatheuss/lina/internal/metrics"
	"github.com/oMatheuss/lina/machine"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

type idleMachine struct{ disposed int }

func (m *idleMachine) Start(string) machine.Result { return machine.More(0) }
func (m *idleMachine) Resume(int) machine.Result   { return machine.More(1) }
func (m *idleMachine) SubmitInput(string)          {}
func (m *idleMachine) TakeOutput() []string        { return nil }
func (m *idleMachine) Dispose()                    { m.disposed++ }

// A quantum that finishes after its run was superseded must not leak output
// into the new run.
func TestCommitDiscardsSupersededOutput(t *testing.T) {
	old, next := &idleMachine{}, &idleMachine{}
	handles := []machine.Machine{old, next}
	factory := func(context.Context) (machine.Machine, error) {
		h := handles[0]
		handles = handles[1:]
		return h, nil
	}
	m := metrics.New(nil)
	q := yield.NewQueue()
	d := New(session.NewManager(factory, session.WithLauncher(func(fn func()) { fn() })), q,
		WithMetrics(m))

	gen := d.Start("a")
	require.True(t, q.Step())
	d.Start("b")

	d.commit(gen, old, machine.Done(3), []string{"stale\n", "more\n"}, FaultRuntime, nil)

	assert.Equal(t, "", d.Output())
	assert.Equal(t, Running, d.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiscardedChunks))
	assert.Equal(t, 1, old.disposed)
}

func TestTerminate(t *testing.T) {
	assert.Equal(t, "x\n", terminate("x"))
	assert.Equal(t, "x\n", terminate("x\n"))
	assert.Equal(t, "\n", terminate(""))
}
