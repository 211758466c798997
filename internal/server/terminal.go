package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/session"
	"github.com/oMatheuss/lina/yield"
)

const sendBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage is what the browser sends: start, input or clear.
type ClientMessage struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	Line   string `json:"line,omitempty"`
}

// Event is pushed to the browser for every listener callback, plus "error"
// for rejected client messages.
type Event struct {
	Type       string `json:"type"`
	Chunk      string `json:"chunk,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Error      string `json:"error,omitempty"`
}

type terminal struct {
	conn *websocket.Conn
	ctx  context.Context
	send chan Event
	loop *yield.Loop
	d    *driver.Driver
	log  *zap.Logger
}

func (s *Server) serveTerminal(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	t := &terminal{
		conn: conn,
		ctx:  ctx,
		send: make(chan Event, sendBuffer),
		loop: yield.NewLoop(ctx).Start(),
		log:  s.log.With(zap.String("conn", uuid.NewString())),
	}
	sessions := session.NewManager(lina.Factory(s.vmOpts...),
		session.WithLogger(t.log),
		session.WithMetrics(s.metrics),
	)
	t.d = driver.New(sessions, t.loop,
		driver.WithStepBudget(s.cfg.Driver.StepBudget),
		driver.WithContext(ctx),
		driver.WithLogger(t.log),
		driver.WithMetrics(s.metrics),
		driver.WithListener(t),
	)

	written := make(chan struct{})
	go t.writePump(cancel, written)

	t.log.Debug("terminal connected")
	t.readPump()

	if err := t.loop.Call(context.Background(), t.d.Shutdown); err != nil {
		t.d.Shutdown()
	}
	t.loop.Stop()
	<-t.loop.Done()
	close(t.send)
	<-written
	t.log.Debug("terminal disconnected")
}

func (t *terminal) readPump() {
	for {
		var msg ClientMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case "start":
			source := msg.Source
			t.loop.ScheduleSoon(func() { t.d.Start(source) })
		case "input":
			line := msg.Line
			t.loop.ScheduleSoon(func() {
				if err := t.d.SubmitInput(line); err != nil {
					t.emit(Event{Type: "error", Error: err.Error()})
				}
			})
		case "clear":
			t.loop.ScheduleSoon(t.d.Clear)
		default:
			t.loop.ScheduleSoon(func() {
				t.emit(Event{Type: "error", Error: "unknown message type " + msg.Type})
			})
		}
	}
}

// writePump is the connection's only writer.
func (t *terminal) writePump(cancel context.CancelFunc, written chan<- struct{}) {
	defer close(written)
	failed := false
	for ev := range t.send {
		if failed {
			continue
		}
		if err := t.conn.WriteJSON(ev); err != nil {
			t.log.Debug("websocket write failed", zap.Error(err))
			failed = true
			cancel()
			t.conn.Close()
		}
	}
}

// emit runs on the loop goroutine.
func (t *terminal) emit(ev Event) {
	select {
	case t.send <- ev:
	case <-t.ctx.Done():
	}
}

func (t *terminal) OnOutputAppended(chunk string) {
	t.emit(Event{Type: "output", Chunk: chunk, Generation: t.d.Generation()})
}

func (t *terminal) OnAwaitingInput() {
	t.emit(Event{Type: "awaiting_input", Generation: t.d.Generation()})
}

func (t *terminal) OnRunCompleted() {
	t.emit(Event{Type: "completed", Generation: t.d.Generation()})
}

func (t *terminal) OnRunFaulted(f driver.Fault) {
	t.emit(Event{
		Type:       "faulted",
		Generation: f.Generation,
		Kind:       f.Kind.String(),
		Diagnostic: f.Diagnostic,
	})
}
