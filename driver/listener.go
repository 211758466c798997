package driver

// Listener receives the driver's terminal-facing events. Each Driver has
// exactly one listener; events are delivered in order, outside the driver's
// locks, on the goroutine that caused them.
type Listener interface {
	OnOutputAppended(chunk string)
	OnAwaitingInput()
	OnRunCompleted()
	OnRunFaulted(f Fault)
}

// ListenerFuncs adapts optional callbacks to Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	Output        func(chunk string)
	AwaitingInput func()
	Completed     func()
	Faulted       func(f Fault)
}

func (l ListenerFuncs) OnOutputAppended(chunk string) {
	if l.Output != nil {
		l.Output(chunk)
	}
}

func (l ListenerFuncs) OnAwaitingInput() {
	if l.AwaitingInput != nil {
		l.AwaitingInput()
	}
}

func (l ListenerFuncs) OnRunCompleted() {
	if l.Completed != nil {
		l.Completed()
	}
}

func (l ListenerFuncs) OnRunFaulted(f Fault) {
	if l.Faulted != nil {
		l.Faulted(f)
	}
}

type event func(Listener)

func outputEvent(chunk string) event {
	return func(l Listener) { l.OnOutputAppended(chunk) }
}

func awaitingEvent() event {
	return func(l Listener) { l.OnAwaitingInput() }
}

func completedEvent() event {
	return func(l Listener) { l.OnRunCompleted() }
}

func faultedEvent(f Fault) event {
	return func(l Listener) { l.OnRunFaulted(f) }
}
