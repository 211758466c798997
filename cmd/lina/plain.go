package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/yield"
)

func runPlain(app appConfig, args []string) error {
	fs := flag.NewFlagSet("plain", flag.ContinueOnError)
	echo := fs.Bool("echo", false, "copy input lines to stdout (for piped input)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, source, err := sourceArg(fs.Args())
	if err != nil {
		return err
	}
	return plainSession(context.Background(), app, source, os.Stdin, os.Stdout, *echo)
}

// plainSession drives one run on a yield.Loop, reading a line from in each
// time the program waits for input. Unless echo is set, the driver's echo of
// a submitted line is not written, since a terminal already shows it.
func plainSession(ctx context.Context, app appConfig, source string, in io.Reader, w io.Writer, echo bool) error {
	loop := yield.NewLoop(ctx).Start()
	defer loop.Stop()

	out := bufio.NewWriter(w)
	awaiting := make(chan struct{}, 1)
	finished := make(chan error, 1)
	var pendingEcho string

	log, err := hostLogger(app.cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	d := newDriver(app, loop, log, driver.ListenerFuncs{
		Output: func(chunk string) {
			if pendingEcho != "" && chunk == pendingEcho {
				pendingEcho = ""
				return
			}
			io.WriteString(out, chunk)
			out.Flush()
		},
		AwaitingInput: func() { awaiting <- struct{}{} },
		Completed:     func() { finished <- nil },
		Faulted:       func(f driver.Fault) { finished <- f },
	})
	shutdown := func() {
		if err := loop.Call(context.Background(), d.Shutdown); err != nil {
			d.Shutdown()
		}
	}

	loop.ScheduleSoon(func() { d.Start(source) })
	reader := bufio.NewReader(in)
	for {
		select {
		case err := <-finished:
			shutdown()
			return err
		case <-ctx.Done():
			shutdown()
			return ctx.Err()
		case <-awaiting:
		}

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			shutdown()
			if errors.Is(err, io.EOF) {
				return lina.ErrInputClosed
			}
			return err
		}
		var submitErr error
		callErr := loop.Call(ctx, func() {
			if !echo {
				pendingEcho = strings.TrimRight(line, "\r\n") + "\n"
			}
			submitErr = d.SubmitInput(line)
		})
		if callErr != nil {
			return callErr
		}
		if submitErr != nil {
			shutdown()
			return submitErr
		}
	}
}
