// Package metrics exposes Prometheus metrics for discussions and the HTTP API.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/agentpanel/engine"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "agentpanel"

// Collector records discussion and HTTP metrics.
type Collector struct {
	discussionsTotal   *prometheus.CounterVec
	discussionDuration prometheus.Histogram
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	synthesisTotal     *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers the metrics with reg. A nil reg selects the default
// Prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{}

	c.discussionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussions_total",
			Help:      "Total number of finished discussions",
		},
		[]string{"status"},
	)

	c.discussionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discussion_duration_seconds",
			Help:      "Discussion duration in seconds, synthesis included",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of agent turns",
		},
		[]string{"agent", "status"}, // status: success, skipped
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Agent turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.synthesisTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_total",
			Help:      "Total number of synthesis calls",
		},
		[]string{"status"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return c
}

// RecordHTTPRequest records one served request. route is the route template,
// not the raw path.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordTurn records one agent turn.
func (c *Collector) RecordTurn(agentID string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "skipped"
	}
	c.turnsTotal.WithLabelValues(agentID, status).Inc()
	c.turnDuration.WithLabelValues(agentID).Observe(d.Seconds())
}

// RecordSynthesis records one synthesis call.
func (c *Collector) RecordSynthesis(ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	c.synthesisTotal.WithLabelValues(status).Inc()
}

// RecordDiscussion records a finished discussion.
func (c *Collector) RecordDiscussion(status string, d time.Duration) {
	c.discussionsTotal.WithLabelValues(status).Inc()
	c.discussionDuration.Observe(d.Seconds())
}

// Callbacks returns engine callbacks feeding the collector.
func (c *Collector) Callbacks() []engine.Callback {
	return []engine.Callback{
		engine.NewFunctionCallback(engine.CallbackAfterTurn, func(_ context.Context, cb *engine.CallbackContext) error {
			c.RecordTurn(cb.AgentID, cb.Err == nil, cb.Duration)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackAfterSynthesis, func(_ context.Context, cb *engine.CallbackContext) error {
			c.RecordSynthesis(cb.Synthesis != nil && cb.Synthesis.OK)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackDiscussionEnd, func(_ context.Context, cb *engine.CallbackContext) error {
			status := "unknown"
			if cb.State != nil {
				status = string(cb.State.Status)
			}
			c.RecordDiscussion(status, cb.Duration)
			return nil
		}),
	}
}

// Register adds the collector's callbacks to cm.
func (c *Collector) Register(cm *engine.CallbackManager) {
	for _, cb := range c.Callbacks() {
		cm.RegisterCallback(cb)
	}
}
