package logstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/alexsjones/agentconsole/internal/metrics"
)

// WebSocketSource reads the log channel from the backend's /logs endpoint.
type WebSocketSource struct {
	URL     string
	Dialer  *websocket.Dialer
	Log     logr.Logger
	Metrics *metrics.Recorder
}

// Open dials the log channel.
func (w *WebSocketSource) Open(ctx context.Context) (*Stream, error) {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	log := w.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	conn, resp, err := dialer.DialContext(ctx, w.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: http %d: %w", w.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", w.URL, err)
	}
	log.Info("Log channel connected", "url", w.URL)

	s := newStream(conn.Close, w.Metrics)
	go w.read(conn, s, log)
	s.closeOnDone(ctx)
	return s, nil
}

func (w *WebSocketSource) read(conn *websocket.Conn, s *Stream, log logr.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case s.stopped():
				s.finish(nil)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				log.Info("Log channel closed by peer")
				_ = conn.Close()
				s.finish(nil)
			default:
				log.Error(err, "Log channel read failed")
				_ = conn.Close()
				s.finish(fmt.Errorf("%w: %w", ErrDisconnected, err))
			}
			return
		}
		if !s.emit(string(data)) {
			return
		}
	}
}

// IsDisconnect reports whether err marks an abnormal end of the channel.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
