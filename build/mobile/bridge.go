// Package mobile is the gomobile-friendly surface: strings and ints in, JSON
// out. Nothing runs on its own; the host calls Pump from its UI loop.
package mobile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

type snapshot struct {
	driver.Snapshot
	Pending    int    `json:"pending"`
	FaultKind  string `json:"fault_kind,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Session is one terminal. It is not safe for concurrent use; call it from
// the UI thread.
type Session struct {
	q     *yield.Queue
	d     *driver.Driver
	fault *driver.Fault
}

// NewSession creates a session. A non-positive budget selects the default.
func NewSession(budget int) *Session {
	s := &Session{q: yield.NewQueue()}
	sessions := session.NewManager(lina.Factory(), session.WithLauncher(func(fn func()) { fn() }))
	s.d = driver.New(sessions, s.q,
		driver.WithStepBudget(budget),
		driver.WithListener(driver.ListenerFuncs{
			Faulted: func(f driver.Fault) { s.fault = &f },
		}),
	)
	return s
}

// Start begins a new run, superseding the current one. Call Pump to advance
// it.
func (s *Session) Start(source string) string {
	s.fault = nil
	s.d.Start(source)
	return s.snapshot("")
}

// Submit answers a pending read.
func (s *Session) Submit(line string) string {
	if err := s.d.SubmitInput(line); err != nil {
		return s.snapshot(err.Error())
	}
	return s.snapshot("")
}

// Pump runs up to limit scheduled quanta (all of them when limit <= 0) and
// reports where the run stands.
func (s *Session) Pump(limit int) string {
	s.q.Drain(limit)
	return s.snapshot("")
}

func (s *Session) Clear() string {
	s.d.Clear()
	return s.snapshot("")
}

func (s *Session) Close() {
	s.d.Shutdown()
	s.q.Drain(0)
}

func (s *Session) snapshot(errText string) string {
	snap := snapshot{
		Snapshot: s.d.Snapshot(),
		Pending:  s.q.Len(),
		Error:    errText,
	}
	if s.fault != nil && s.fault.Generation == snap.Generation {
		snap.FaultKind = s.fault.Kind.String()
		snap.Diagnostic = s.fault.Diagnostic
	}
	b, _ := json.Marshal(snap)
	return string(b)
}

type runResult struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Run executes source to completion with queued input lines and returns the
// transcript as JSON. inputsJSON format: ["1","ana", ...]
func Run(source, inputsJSON string) string {
	result := runResult{}

	var queued []string
	if strings.TrimSpace(inputsJSON) != "" {
		if err := json.Unmarshal([]byte(inputsJSON), &queued); err != nil {
			result.Error = fmt.Sprintf("invalid inputs json: %v", err)
			b, _ := json.Marshal(result)
			return string(b)
		}
	}

	var out strings.Builder
	input := strings.Join(queued, "\n")
	if err := lina.Run(source, strings.NewReader(input), &out); err != nil {
		result.Error = err.Error()
	}
	result.Output = out.String()
	b, _ := json.Marshal(result)
	return string(b)
}
