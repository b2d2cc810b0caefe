package logstream

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/alexsjones/agentconsole/internal/metrics"
)

// NATSSource reads the log channel from a NATS subject the agent publishes
// its runtime output to.
type NATSSource struct {
	URL     string
	Subject string
	Log     logr.Logger
	Metrics *metrics.Recorder
}

// Open connects and subscribes. Any connection made before a failure is
// closed.
func (n *NATSSource) Open(ctx context.Context) (*Stream, error) {
	log := n.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if n.Subject == "" {
		return nil, fmt.Errorf("nats log source: empty subject")
	}

	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	s := newStream(nil, n.Metrics)
	nc, err := nats.Connect(n.URL,
		nats.Name("agentconsole"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if s.stopped() {
				return
			}
			if err == nil {
				err = nats.ErrConnectionClosed
			}
			log.Error(err, "NATS log channel disconnected")
			s.finish(fmt.Errorf("%w: %w", ErrDisconnected, err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	s.closeFn = func() error {
		nc.Close()
		return nil
	}

	if _, err := nc.Subscribe(n.Subject, func(m *nats.Msg) {
		s.emit(string(m.Data))
	}); err != nil {
		s.halt()
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", n.Subject, err)
	}
	if err := nc.FlushTimeout(timeout); err != nil {
		s.halt()
		nc.Close()
		return nil, fmt.Errorf("flushing subscription to %s: %w", n.Subject, err)
	}

	log.Info("Log channel subscribed", "url", n.URL, "subject", n.Subject)
	s.closeOnDone(ctx)
	return s, nil
}
