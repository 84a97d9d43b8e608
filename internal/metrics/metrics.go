// Package metrics wraps the Prometheus collectors of the pizza service
// listener and its connection actors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple servers in one
// process never collide on the default registry. A nil *Collector records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	connections    prometheus.Counter
	active         prometheus.Gauge
	states         *prometheus.CounterVec
	responses      *prometheus.CounterVec
	deadlines      prometheus.Counter
	tokensIssued   prometheus.Counter
	verifications  *prometheus.CounterVec
	handleDuration prometheus.Histogram
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "pizzaservice"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.connections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_total",
		Help:      "Accepted client connections",
	})
	c.active = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Connections currently owned by an actor",
	})
	c.states = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_state_total",
		Help:      "Connection state machine transitions, by entered state",
	}, []string{"state"})
	c.responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_total",
		Help:      "Responses written, by status code",
	}, []string{"status"})
	c.deadlines = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deadline_exceeded_total",
		Help:      "Connections closed by the deadline before a response was written",
	})
	c.tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "tokens_issued_total",
		Help:      "Order tokens minted",
	})
	c.verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "token_verifications_total",
		Help:      "Token verifications, by result",
	}, []string{"result"})
	c.handleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handle_duration_seconds",
		Help:      "Time from complete request to response ready",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	c.registry.MustRegister(
		c.connections, c.active, c.states, c.responses, c.deadlines,
		c.tokensIssued, c.verifications, c.handleDuration,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
	c.active.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.active.Dec()
}

func (c *Collector) State(state string) {
	if c == nil {
		return
	}
	c.states.WithLabelValues(state).Inc()
}

func (c *Collector) Response(status int) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (c *Collector) DeadlineExceeded() {
	if c == nil {
		return
	}
	c.deadlines.Inc()
}

func (c *Collector) TokenIssued() {
	if c == nil {
		return
	}
	c.tokensIssued.Inc()
}

func (c *Collector) TokenVerified(ok bool) {
	if c == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	c.verifications.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveHandle(d time.Duration) {
	if c == nil {
		return
	}
	c.handleDuration.Observe(d.Seconds())
}
