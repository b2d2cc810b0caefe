// Package metrics records console activity in Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "agentconsole"

// Outcomes recorded on API requests.
const (
	OutcomeOK          = "ok"
	OutcomeHTTPError   = "http_error"
	OutcomeUnreachable = "unreachable"
)

// Recorder owns the console's collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	apiRequests       *prometheus.CounterVec
	apiDuration       *prometheus.HistogramVec
	logLines          prometheus.Counter
	streamDisconnects prometheus.Counter
	agentStatus       *prometheus.GaugeVec
}

// NewRecorder builds a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Requests issued to the agent backend, by operation and outcome.",
		}, []string{"op", "outcome"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of agent backend requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		logLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Lines received on the agent log channel.",
		}),
		streamDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_stream_disconnects_total",
			Help:      "Log channel connections that ended with an error.",
		}),
		agentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_status",
			Help:      "1 for the agent status the console currently shows.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(
		r.apiRequests,
		r.apiDuration,
		r.logLines,
		r.streamDisconnects,
		r.agentStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for the HTTP handler and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRequest records one backend request.
func (r *Recorder) ObserveRequest(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.apiRequests.WithLabelValues(op, outcome).Inc()
	r.apiDuration.WithLabelValues(op).Observe(d.Seconds())
}

// LogLine counts one received log line.
func (r *Recorder) LogLine() {
	if r == nil {
		return
	}
	r.logLines.Inc()
}

// StreamDisconnected counts an abnormal end of the log channel.
func (r *Recorder) StreamDisconnected() {
	if r == nil {
		return
	}
	r.streamDisconnects.Inc()
}

// SetAgentStatus marks status as the one currently shown.
func (r *Recorder) SetAgentStatus(status string, all ...string) {
	if r == nil {
		return
	}
	for _, s := range all {
		r.agentStatus.WithLabelValues(s).Set(0)
	}
	r.agentStatus.WithLabelValues(status).Set(1)
}
