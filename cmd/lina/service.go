package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/internal/config"
	"github.com/oMatheuss/lina/internal/logging"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

// programScheduler posts callbacks to the bubbletea program. Send blocks
// until Update receives the message, and Update is where callbacks are
// scheduled from, so every post gets its own goroutine.
type programScheduler struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programScheduler) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programScheduler) ScheduleSoon(fn func()) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p == nil {
		return
	}
	go p.Send(yieldMsg{fn: fn})
}

// hostLogger builds the logger for a host. Terminal hosts that own the
// screen discard logs unless a file is configured.
func hostLogger(cfg *config.Config, ownsTerminal bool) (*zap.Logger, error) {
	lc := logging.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Path:        cfg.Log.Path,
	}
	if ownsTerminal && lc.Path == "" {
		lc.Path = "-"
	}
	return logging.New(lc)
}

func newDriver(app appConfig, sched yield.Scheduler, log *zap.Logger, l driver.Listener) *driver.Driver {
	sessions := session.NewManager(lina.Factory(app.machineOptions()...), session.WithLogger(log))
	return driver.New(sessions, sched,
		driver.WithStepBudget(app.cfg.Driver.StepBudget),
		driver.WithLogger(log),
		driver.WithListener(l),
	)
}

func runTUI(app appConfig, args []string) error {
	path, source, err := sourceArg(args)
	if err != nil {
		return err
	}
	if path == "-" {
		return errNoSource
	}
	log, err := hostLogger(app.cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	sched := &programScheduler{}
	status := &runStatus{}
	d := newDriver(app, sched, log, driver.ListenerFuncs{
		Completed: func() { status.note = "program finished" },
		Faulted: func(f driver.Fault) {
			status.fault = &f
		},
	})
	defer d.Shutdown()

	p := tea.NewProgram(newModel(path, source, d, status), tea.WithAltScreen())
	sched.attach(p)
	_, err = p.Run()
	return err
}
