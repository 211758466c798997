package main

import (
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/internal/config"
	lruntime "github.com/oMatheuss/lina/runtime"
)

type appConfig struct {
	cfg      *config.Config
	maxSteps int64
}

func (a appConfig) machineOptions() []lruntime.Option {
	if a.maxSteps <= 0 {
		return nil
	}
	return []lruntime.Option{lruntime.WithMaxSteps(a.maxSteps)}
}

// yieldMsg carries a driver callback into the bubbletea update loop.
type yieldMsg struct {
	fn func()
}

type restartMsg struct{}

// runStatus is written by the driver listener, which the TUI only ever
// triggers from inside Update.
type runStatus struct {
	fault *driver.Fault
	note  string
}

func (s *runStatus) reset() {
	s.fault = nil
	s.note = ""
}
