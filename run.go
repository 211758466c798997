package lina

import (
	"bufio"
	"errors"
	"io"

	"github.com/oMatheuss/lina/driver"
	lruntime "github.com/oMatheuss/lina/runtime"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

// ErrInputClosed is returned by Run when the program reads after in is
// exhausted.
var ErrInputClosed = errors.New("input closed while program was reading")

// Run executes source to completion on the calling goroutine, feeding reads
// from in one line at a time. Everything the terminal would show, echoed
// input included, goes to out. A fault is returned as a driver.Fault.
func Run(source string, in io.Reader, out io.Writer, opts ...lruntime.Option) error {
	sessions := session.NewManager(Factory(opts...), session.WithLauncher(func(fn func()) { fn() }))

	var (
		fault    error
		writeErr error
	)
	d := driver.New(sessions, yield.NewImmediate(), driver.WithListener(driver.ListenerFuncs{
		Output: func(chunk string) {
			if writeErr == nil {
				_, writeErr = io.WriteString(out, chunk)
			}
		},
		Faulted: func(f driver.Fault) { fault = f },
	}))
	defer d.Shutdown()

	d.Start(source)
	sc := bufio.NewScanner(in)
	for d.State() == driver.AwaitingInput {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return ErrInputClosed
		}
		if err := d.SubmitInput(sc.Text()); err != nil {
			return err
		}
	}
	if fault != nil {
		return fault
	}
	return writeErr
}
