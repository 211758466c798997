package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oMatheuss/lina/internal/config"
	"github.com/oMatheuss/lina/internal/server"
)

const greeting = `programa saudacao
    texto nome := ""
    entrada(nome)
    saida("ola, ", nome)
fim`

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	s := server.New(config.Default(), prometheus.NewRegistry())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg server.ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// next reads events until one of type want arrives, collecting output chunks
// on the way.
func next(t *testing.T, conn *websocket.Conn, want string, out *strings.Builder) server.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev server.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == "output" && out != nil {
			out.WriteString(ev.Chunk)
		}
		if ev.Type == want {
			return ev
		}
		require.NotEqual(t, "faulted", ev.Type, ev.Diagnostic)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, config.DefaultStepBudget, body["step_budget"])
}

func TestCORSRestrictsOrigins(t *testing.T) {
	cfg := config.Default()
	cfg.Server.AllowOrigins = []string{"http://lina.example"}
	ts := httptest.NewServer(server.New(cfg, prometheus.NewRegistry()).Handler())
	t.Cleanup(ts.Close)

	get := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	ok := get("http://lina.example")
	assert.Equal(t, http.StatusOK, ok.StatusCode)
	assert.Equal(t, "http://lina.example", ok.Header.Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusForbidden, get("http://other.example").StatusCode)
}

func TestTerminalRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, server.ClientMessage{Type: "start", Source: greeting})
	awaiting := next(t, conn, "awaiting_input", nil)
	assert.EqualValues(t, 1, awaiting.Generation)

	var out strings.Builder
	send(t, conn, server.ClientMessage{Type: "input", Line: "mundo"})
	next(t, conn, "completed", &out)
	assert.Equal(t, "mundo\nola, mundo\n", out.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Runs.WithLabelValues("completed")))
}

func TestTerminalReportsFaults(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, server.ClientMessage{Type: "start", Source: "programa p\n    saida(y)\nfim"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev server.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type != "faulted" {
			continue
		}
		assert.Equal(t, "compile", ev.Kind)
		assert.Equal(t, "erro semântico na linha 2: variável 'y' não declarada", ev.Diagnostic)
		return
	}
}

func TestTerminalRejectsUnexpectedInput(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, server.ClientMessage{Type: "input", Line: "cedo demais"})
	ev := next(t, conn, "error", nil)
	assert.Contains(t, ev.Error, "not awaiting input")

	send(t, conn, server.ClientMessage{Type: "teleport"})
	ev = next(t, conn, "error", nil)
	assert.Equal(t, "unknown message type teleport", ev.Error)
}

func TestRestartSupersedesRun(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, server.ClientMessage{Type: "start", Source: greeting})
	next(t, conn, "awaiting_input", nil)

	send(t, conn, server.ClientMessage{Type: "start", Source: "programa p\n    saida(\"de novo\")\nfim"})
	var out strings.Builder
	done := next(t, conn, "completed", &out)
	assert.EqualValues(t, 2, done.Generation)
	assert.Equal(t, "de novo\n", out.String())
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "lina_ws_connections")
}
