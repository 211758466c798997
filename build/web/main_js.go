//go:build js && wasm

package main

import (
	"encoding/json"
	"strings"
	"syscall/js"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

type runResult struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// setTimeout yields to the browser between quanta so the page stays
// responsive while a program loops.
var setTimeout = yield.Func(func(fn func()) {
	var cb js.Func
	cb = js.FuncOf(func(this js.Value, args []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	js.Global().Call("setTimeout", cb, 0)
})

func callback(obj js.Value, name string, args ...any) {
	if obj.IsUndefined() || obj.IsNull() {
		return
	}
	fn := obj.Get(name)
	if fn.Type() != js.TypeFunction {
		return
	}
	fn.Invoke(args...)
}

// newTerminal backs linaNew(callbacks). Each instance owns its driver and
// reports through its own callbacks object: onOutput(chunk),
// onAwaitingInput(), onCompleted(), onFaulted(kind, diagnostic).
func newTerminal(this js.Value, args []js.Value) any {
	var cbs js.Value
	if len(args) > 0 {
		cbs = args[0]
	}
	budget := 0
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		budget = args[1].Int()
	}

	sessions := session.NewManager(lina.Factory())
	d := driver.New(sessions, setTimeout,
		driver.WithStepBudget(budget),
		driver.WithListener(driver.ListenerFuncs{
			Output:        func(chunk string) { callback(cbs, "onOutput", chunk) },
			AwaitingInput: func() { callback(cbs, "onAwaitingInput") },
			Completed:     func() { callback(cbs, "onCompleted") },
			Faulted: func(f driver.Fault) {
				callback(cbs, "onFaulted", f.Kind.String(), f.Diagnostic)
			},
		}),
	)

	var funcs []js.Func
	method := func(fn func(args []js.Value) any) js.Func {
		f := js.FuncOf(func(this js.Value, args []js.Value) any { return fn(args) })
		funcs = append(funcs, f)
		return f
	}

	obj := js.Global().Get("Object").New()
	obj.Set("start", method(func(args []js.Value) any {
		if len(args) < 1 {
			return js.ValueOf(0)
		}
		return js.ValueOf(float64(d.Start(args[0].String())))
	}))
	obj.Set("submit", method(func(args []js.Value) any {
		line := ""
		if len(args) > 0 {
			line = args[0].String()
		}
		if err := d.SubmitInput(line); err != nil {
			return err.Error()
		}
		return js.Null()
	}))
	obj.Set("clear", method(func(args []js.Value) any {
		d.Clear()
		return nil
	}))
	obj.Set("output", method(func(args []js.Value) any {
		return d.Output()
	}))
	obj.Set("state", method(func(args []js.Value) any {
		return d.State().String()
	}))
	obj.Set("dispose", method(func(args []js.Value) any {
		d.Shutdown()
		for _, f := range funcs {
			f.Release()
		}
		funcs = nil
		return nil
	}))
	return obj
}

// runOnce backs linaRun(source, inputsJSON): a synchronous run with queued
// input, returning {"output": ..., "error": ...}.
func runOnce(this js.Value, args []js.Value) any {
	result := runResult{}
	if len(args) < 1 {
		result.Error = "linaRun requires the program source"
		b, _ := json.Marshal(result)
		return string(b)
	}
	var queued []string
	if len(args) > 1 && strings.TrimSpace(args[1].String()) != "" {
		if err := json.Unmarshal([]byte(args[1].String()), &queued); err != nil {
			result.Error = "invalid inputs json: " + err.Error()
			b, _ := json.Marshal(result)
			return string(b)
		}
	}

	var out strings.Builder
	if err := lina.Run(args[0].String(), strings.NewReader(strings.Join(queued, "\n")), &out); err != nil {
		result.Error = err.Error()
	}
	result.Output = out.String()
	b, _ := json.Marshal(result)
	return string(b)
}

func main() {
	js.Global().Set("linaNew", js.FuncOf(newTerminal))
	js.Global().Set("linaRun", js.FuncOf(runOnce))
	select {}
}
