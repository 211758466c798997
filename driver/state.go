package driver

import (
	"errors"
	"fmt"
)

type State int

const (
	Idle State = iota
	Running
	AwaitingInput
	Completed
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case AwaitingInput:
		return "awaiting-input"
	case Completed:
		return "completed"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == Completed || s == Faulted
}

// ErrNotAwaitingInput is returned when a line is submitted while no read is
// pending. The line is neither queued nor echoed.
var ErrNotAwaitingInput = errors.New("driver is not awaiting input")

type FaultKind int

const (
	// FaultCompile: the machine rejected the source in Start.
	FaultCompile FaultKind = iota
	// FaultRuntime: the machine failed while resuming.
	FaultRuntime
	// FaultAcquire: no machine could be constructed.
	FaultAcquire
)

func (k FaultKind) String() string {
	switch k {
	case FaultCompile:
		return "compile"
	case FaultRuntime:
		return "runtime"
	case FaultAcquire:
		return "acquire"
	default:
		return fmt.Sprintf("fault(%d)", int(k))
	}
}

// Fault describes why a run stopped without completing.
type Fault struct {
	Kind       FaultKind
	Diagnostic string
	Generation uint64
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s fault: %s", f.Kind, f.Diagnostic)
}
