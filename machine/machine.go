// Package machine defines the contract between the execution driver and a
// sandboxed virtual machine. The driver never looks inside a Machine: it only
// starts it, resumes it with a step budget, hands it input lines and drains the
// output it produced.
package machine

import (
	"context"
	"fmt"
)

type Status int

const (
	// MoreWork means the budget ran out before the program finished.
	MoreWork Status = iota
	// AwaitingInput means the program is blocked on a read and needs a line.
	AwaitingInput
	Completed
	Faulted
)

func (s Status) String() string {
	switch s {
	case MoreWork:
		return "more-work"
	case AwaitingInput:
		return "awaiting-input"
	case Completed:
		return "completed"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one Start or Resume call.
type Result struct {
	Status     Status
	Diagnostic string
	// Steps is the number of instructions executed by the call.
	Steps int
}

func Done(steps int) Result {
	return Result{Status: Completed, Steps: steps}
}

func More(steps int) Result {
	return Result{Status: MoreWork, Steps: steps}
}

func Blocked(steps int) Result {
	return Result{Status: AwaitingInput, Steps: steps}
}

func Fault(steps int, diagnostic string) Result {
	return Result{Status: Faulted, Steps: steps, Diagnostic: diagnostic}
}

// Terminal reports whether no further Resume is meaningful.
func (r Result) Terminal() bool {
	return r.Status == Completed || r.Status == Faulted
}

// Machine is one live VM instance. Implementations are not safe for
// concurrent use; callers serialise access.
type Machine interface {
	// Start compiles source and prepares execution. It may return Faulted
	// on a compile error.
	Start(source string) Result
	// Resume executes at most budget instructions.
	Resume(budget int) Result
	// SubmitInput delivers one line to a machine blocked on a read.
	SubmitInput(line string)
	// TakeOutput returns the chunks written since the previous call.
	TakeOutput() []string
	// Dispose releases everything the machine holds. It is idempotent.
	Dispose()
}

// Factory constructs a fresh Machine. It may block (module download,
// instantiation) and should honour ctx.
type Factory func(ctx context.Context) (Machine, error)
