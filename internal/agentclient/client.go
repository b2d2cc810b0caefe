// Package agentclient talks to the agent backend's HTTP API: it reads and
// persists the configuration record and issues start/stop control calls.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexsjones/agentconsole/internal/agentconfig"
	"github.com/alexsjones/agentconsole/internal/metrics"
	"github.com/alexsjones/agentconsole/internal/observability"
)

// Operation names used in errors, metrics and spans.
const (
	OpGetConfig  = "get_config"
	OpSaveConfig = "save_config"
	OpStart      = "start"
	OpStop       = "stop"
)

// Backend status words returned by the control endpoints.
const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusStopped        = "stopped"
)

// ErrUnreachable wraps transport failures where no HTTP response arrived.
var ErrUnreachable = errors.New("agent backend unreachable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, body)
}

// ControlResult is the decoded body of a start or stop response.
type ControlResult struct {
	Status string `json:"status"`
}

// Client is an HTTP client for one agent backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	log        logr.Logger
	metrics    *metrics.Recorder
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records request counts and latencies on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = rec }
}

// WithTracer sets the tracer for per-request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Transport: observability.Transport(nil)},
		log:        logr.Discard(),
		tracer:     observability.Disabled().Tracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// GetConfig fetches the backend's configuration document. The raw JSON is
// returned so the caller can merge it over its current state.
func (c *Client) GetConfig(ctx context.Context) ([]byte, error) {
	return c.do(ctx, OpGetConfig, http.MethodGet, "/config", nil)
}

// SaveConfig posts the whole configuration record.
func (c *Client) SaveConfig(ctx context.Context, cfg agentconfig.Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%s: encoding config: %w", OpSaveConfig, err)
	}
	_, err = c.do(ctx, OpSaveConfig, http.MethodPost, "/config", body)
	return err
}

// Start asks the backend to start the agent.
func (c *Client) Start(ctx context.Context) (ControlResult, error) {
	return c.control(ctx, OpStart, "/start")
}

// Stop asks the backend to stop the agent.
func (c *Client) Stop(ctx context.Context) (ControlResult, error) {
	return c.control(ctx, OpStop, "/stop")
}

func (c *Client) control(ctx context.Context, op, path string) (ControlResult, error) {
	body, err := c.do(ctx, op, http.MethodPost, path, nil)
	if err != nil {
		return ControlResult{}, err
	}
	var res ControlResult
	// The status body is advisory; anything undecodable is a zero result.
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &res)
	}
	return res, nil
}

// LogsURL maps an http(s) base address to the ws(s) URL of path.
func LogsURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if path == "" {
		path = "/logs"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "agentclient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	data, err := c.roundTrip(ctx, op, method, path, body)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	var se *StatusError
	switch {
	case errors.As(err, &se):
		outcome = metrics.OutcomeHTTPError
		span.SetAttributes(attribute.Int("http.response.status_code", se.StatusCode))
	case err != nil:
		outcome = metrics.OutcomeUnreachable
	}
	c.metrics.ObserveRequest(op, outcome, elapsed)
	observability.MarkSpanError(span, err)

	if err != nil {
		c.log.V(1).Info("Backend request failed", "op", op, "path", path, "elapsed", elapsed, "error", err.Error())
		return nil, err
	}
	c.log.V(1).Info("Backend request", "op", op, "path", path, "elapsed", elapsed, "bytes", len(data))
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
