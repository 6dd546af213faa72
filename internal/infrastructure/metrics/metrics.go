// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderbot/internal/ports"
)

const namespace = "orderbot"

// Metrics implements ports.Telemetry on a private registry, so several
// instances (tests, one-shot commands) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	messagesParsed   *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	inboundMessages  *prometheus.CounterVec
	alertsDelivered  *prometheus.CounterVec
	loopTicks        *prometheus.CounterVec
	loopTickDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var _ ports.Telemetry = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_parsed_total",
			Help:      "Inbound rows handled by the tracker, by marker result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order events applied, by outcome.",
		}, []string{"outcome"}),
		inboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Messages appended to the ingestion table, by source.",
		}, []string{"source"}),
		alertsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_delivered_total",
			Help:      "Alert batches sent, by result.",
		}, []string{"result"}),
		loopTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Scheduler ticks, by loop and result.",
		}, []string{"loop", "result"}),
		loopTickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loop_tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the status API.",
		}, []string{"handler", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesParsed,
		m.transitions,
		m.inboundMessages,
		m.alertsDelivered,
		m.loopTicks,
		m.loopTickDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MessageParsed(result string) {
	m.messagesParsed.WithLabelValues(result).Inc()
}

func (m *Metrics) OrderTransition(outcome string) {
	m.transitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) InboundMessages(source string, count int) {
	if count <= 0 {
		return
	}
	m.inboundMessages.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) AlertDelivered(success bool) {
	m.alertsDelivered.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) LoopTick(loop string, err error, elapsed time.Duration) {
	m.loopTicks.WithLabelValues(loop, resultLabel(err == nil)).Inc()
	m.loopTickDuration.WithLabelValues(loop).Observe(elapsed.Seconds())
}

// Instrument wraps a handler with request count and duration metrics.
func (m *Metrics) Instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(name, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func resultLabel(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
