package server

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/protocol"
	"github.com/lox/avetor/internal/session"
)

const testTick = 100 * time.Millisecond

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testServer struct {
	server *Server
	http   *httptest.Server
	clock  *quartz.Mock
}

func newTestServer(t *testing.T, crashPoint float64) *testServer {
	t.Helper()
	clock := quartz.NewMock(t)

	cfg := Config{Session: session.DefaultConfig()}
	cfg.Session.TickInterval = testTick

	srv := NewServer(cfg, testLogger(),
		WithClock(clock),
		WithGeneratorFunc(func(int) crash.Generator { return crash.FixedCrashPoint(crashPoint) }),
	)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		hs.Close()
	})
	return &testServer{server: srv, http: hs, clock: clock}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
}

type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func dialWS(t *testing.T, ts *testServer) *wsConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) send(typ protocol.MessageType, data interface{}) string {
	c.t.Helper()
	c.seq++
	msg, err := protocol.NewMessage(typ, data, time.Now())
	require.NoError(c.t, err)
	msg.RequestID = fmt.Sprintf("req-%d", c.seq)

	frame, err := protocol.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
	return msg.RequestID
}

func (c *wsConn) read() *protocol.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	msg, err := protocol.Unmarshal(frame)
	require.NoError(c.t, err)
	return msg
}

// readUntil skips frames until one of type typ arrives.
func (c *wsConn) readUntil(typ protocol.MessageType) *protocol.Message {
	c.t.Helper()
	for i := 0; i < 500; i++ {
		msg := c.read()
		if msg.Type == typ {
			return msg
		}
	}
	c.t.Fatalf("no %s message", typ)
	return nil
}

func decode[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var v T
	require.NoError(t, msg.Decode(&v))
	return v
}
