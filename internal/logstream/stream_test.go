package logstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alexsjones/agentconsole/internal/metrics"
	"github.com/alexsjones/agentconsole/internal/settings"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsServer upgrades /logs and hands the connection to serve.
func wsServer(t *testing.T, serve func(*websocket.Conn)) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/logs"
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-s.Lines():
			if !ok {
				return got
			}
			got = append(got, line)
		case <-timeout:
			t.Fatal("timed out waiting for stream to end")
		}
	}
}

func TestWebSocketDeliversFramesInOrder(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("a"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("b"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("c"))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})
	rec := metrics.NewRecorder()
	src := &WebSocketSource{URL: url, Log: logr.Discard(), Metrics: rec}

	s, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if got := strings.Join(collect(t, s), ","); got != "a,b,c" {
		t.Errorf("lines = %q, want a,b,c", got)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err after normal close = %v", err)
	}
	expected := `
# HELP agentconsole_log_lines_total Lines received on the agent log channel.
# TYPE agentconsole_log_lines_total counter
agentconsole_log_lines_total 3
`
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "agentconsole_log_lines_total"); err != nil {
		t.Error(err)
	}
}

func TestWebSocketDisconnect(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("only"))
		// Returning drops the TCP connection without a close frame.
	})
	src := &WebSocketSource{URL: url}

	s, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got := collect(t, s)
	if len(got) != 1 || got[0] != "only" {
		t.Errorf("lines = %v", got)
	}
	if !IsDisconnect(s.Err()) {
		t.Errorf("Err = %v, want ErrDisconnected", s.Err())
	}
}

func TestWebSocketCloseIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	s, err := (&WebSocketSource{URL: url}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close()
	_ = s.Close()
	if got := collect(t, s); len(got) != 0 {
		t.Errorf("lines after close = %v", got)
	}
	if s.Err() != nil {
		t.Errorf("Err after local close = %v", s.Err())
	}
}

func TestWebSocketContextCancelCloses(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := (&WebSocketSource{URL: url}).Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cancel()
	collect(t, s)
}

func TestWebSocketOpenFails(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/logs"

	_, err := (&WebSocketSource{URL: url}).Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "http 404") {
		t.Errorf("Open error = %v, want http 404", err)
	}
}

func TestNATSOpenFailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = (&NATSSource{URL: "nats://" + addr, Subject: "agent.logs"}).Open(ctx)
	if err == nil {
		t.Fatal("expected connect error")
	}
}

func TestNATSRequiresSubject(t *testing.T) {
	if _, err := (&NATSSource{URL: "nats://127.0.0.1:1"}).Open(context.Background()); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func natsServer(t *testing.T) *server.Server {
	t.Helper()
	srv := natstest.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)
	return srv
}

func publish(t *testing.T, url, subject string, lines ...string) {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer nc.Close()
	for _, l := range lines {
		if err := nc.Publish(subject, []byte(l)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestNATSDeliversInOrderAndReportsDisconnect(t *testing.T) {
	srv := natsServer(t)
	rec := metrics.NewRecorder()
	s, err := (&NATSSource{URL: srv.ClientURL(), Subject: "agent.logs", Metrics: rec}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	publish(t, srv.ClientURL(), "agent.logs", "a", "b", "c")
	publish(t, srv.ClientURL(), "other.subject", "ignored")

	var got []string
	for len(got) < 3 {
		select {
		case line := <-s.Lines():
			got = append(got, line)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("lines = %v, want a,b,c", got)
	}

	srv.Shutdown()
	if rest := collect(t, s); len(rest) != 0 {
		t.Errorf("unexpected lines after shutdown: %v", rest)
	}
	if !IsDisconnect(s.Err()) {
		t.Errorf("Err = %v, want a disconnect", s.Err())
	}
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(`
# HELP agentconsole_log_stream_disconnects_total Log channel connections that ended with an error.
# TYPE agentconsole_log_stream_disconnects_total counter
agentconsole_log_stream_disconnects_total 1
`), "agentconsole_log_stream_disconnects_total"); err != nil {
		t.Error(err)
	}
}

func TestNATSCloseEndsCleanly(t *testing.T) {
	srv := natsServer(t)
	s, err := (&NATSSource{URL: srv.ClientURL(), Subject: "agent.logs"}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if rest := collect(t, s); len(rest) != 0 {
		t.Errorf("lines after close: %v", rest)
	}
	if s.Err() != nil {
		t.Errorf("Err after Close = %v, want nil", s.Err())
	}
}

func TestNewSource(t *testing.T) {
	cfg := settings.Default()
	src, err := NewSource(cfg, logr.Discard(), nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	ws, ok := src.(*WebSocketSource)
	if !ok || ws.URL != "ws://localhost:8000/logs" {
		t.Errorf("websocket source = %#v", src)
	}

	cfg.Logs.Source = settings.LogSourceNATS
	src, err = NewSource(cfg, logr.Discard(), nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if ns, ok := src.(*NATSSource); !ok || ns.Subject != settings.DefaultNATSSubject {
		t.Errorf("nats source = %#v", src)
	}

	cfg.Logs.Source = "carrier-pigeon"
	if _, err := NewSource(cfg, logr.Discard(), nil); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestStreamFinishRecordsDisconnect(t *testing.T) {
	rec := metrics.NewRecorder()
	s := newStream(nil, rec)
	if !s.emit("x") {
		t.Fatal("emit refused before finish")
	}
	s.finish(errors.Join(ErrDisconnected, errors.New("eof")))
	if s.emit("late") {
		t.Error("emit accepted after finish")
	}
	if got := collect(t, s); len(got) != 1 {
		t.Errorf("lines = %v", got)
	}
	if !IsDisconnect(s.Err()) {
		t.Errorf("Err = %v", s.Err())
	}
	expected := `
# HELP agentconsole_log_stream_disconnects_total Log channel connections that ended with an error.
# TYPE agentconsole_log_stream_disconnects_total counter
agentconsole_log_stream_disconnects_total 1
`
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "agentconsole_log_stream_disconnects_total"); err != nil {
		t.Error(err)
	}
}
