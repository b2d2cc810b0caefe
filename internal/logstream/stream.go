// Package logstream subscribes to the agent's log channel. A Source opens a
// Stream; the Stream delivers every inbound frame as one opaque line, in
// arrival order, until the channel ends or the Stream is closed. There is no
// reconnection.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/metrics"
	"github.com/alexsjones/agentconsole/internal/settings"
)

// ErrDisconnected wraps the cause when the log channel ends abnormally.
var ErrDisconnected = errors.New("log channel disconnected")

// Source opens log channel subscriptions.
type Source interface {
	Open(ctx context.Context) (*Stream, error)
}

// Stream is one open log channel subscription.
type Stream struct {
	lines   chan string
	stop    chan struct{}
	closeFn func() error
	metrics *metrics.Recorder

	stopOnce   sync.Once
	closeOnce  sync.Once
	finishOnce sync.Once
	closeErr   error

	mu       sync.Mutex
	finished bool
	err      error
}

func newStream(closeFn func() error, rec *metrics.Recorder) *Stream {
	return &Stream{
		lines:   make(chan string, 256),
		stop:    make(chan struct{}),
		closeFn: closeFn,
		metrics: rec,
	}
}

// Lines delivers received lines. It is closed when the stream ends.
func (s *Stream) Lines() <-chan string { return s.lines }

// Err returns the terminal error once Lines is closed. It is nil when the
// stream was closed locally or the peer closed it normally.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the connection. It is safe to call more than once and from
// any goroutine.
func (s *Stream) Close() error {
	s.halt()
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	s.finish(nil)
	return s.closeErr
}

func (s *Stream) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Stream) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// emit hands line to the consumer, blocking until it is read or the stream
// is stopped. It reports whether the line was delivered.
func (s *Stream) emit(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	select {
	case s.lines <- line:
		s.metrics.LogLine()
		return true
	case <-s.stop:
		return false
	}
}

func (s *Stream) finish(err error) {
	s.finishOnce.Do(func() {
		s.halt()
		s.mu.Lock()
		s.finished = true
		s.err = err
		close(s.lines)
		s.mu.Unlock()
		if err != nil {
			s.metrics.StreamDisconnected()
		}
	})
}

// closeOnDone closes s when ctx ends before the stream does.
func (s *Stream) closeOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stop:
		}
	}()
}

// NewSource builds the Source selected by the console settings.
func NewSource(cfg settings.Settings, log logr.Logger, rec *metrics.Recorder) (Source, error) {
	switch cfg.Logs.Source {
	case settings.LogSourceNATS:
		return &NATSSource{
			URL:     cfg.Logs.NATSURL,
			Subject: cfg.Logs.NATSSubject,
			Log:     log,
			Metrics: rec,
		}, nil
	case settings.LogSourceWebSocket, "":
		u, err := agentclient.LogsURL(cfg.Backend.BaseURL, cfg.Logs.Path)
		if err != nil {
			return nil, err
		}
		return &WebSocketSource{URL: u, Log: log, Metrics: rec}, nil
	default:
		return nil, fmt.Errorf("unknown log source %q", cfg.Logs.Source)
	}
}
