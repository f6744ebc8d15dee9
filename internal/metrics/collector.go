// Package metrics provides the Prometheus collector for the orchestrator,
// transport, and LLM layers. Internal use only.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records all service metrics. Construct exactly
// once per process; promauto panics on duplicate registration.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	sessionsTotal       *prometheus.CounterVec
	handoffsTotal       *prometheus.CounterVec
	loopDuration        prometheus.Histogram
	eventsForwarded     *prometheus.CounterVec
	gapsDetected        *prometheus.CounterVec
	capabilityRuns      *prometheus.CounterVec
	capabilityDurations *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates the collector and registers its metrics under
// namespace on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of upstream LLM requests",
		},
		[]string{"provider", "model", "status"},
	)
	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Upstream LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)
	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_sessions_total",
			Help:      "Generation sessions started, by agent",
		},
		[]string{"agent"},
	)
	c.handoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Conversation transfers between agents",
		},
		[]string{"from", "to"},
	)
	c.loopDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handoff_loop_duration_seconds",
			Help:      "End-to-end handoff loop duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
	c.eventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_forwarded_total",
			Help:      "Outbound stream events, by type",
		},
		[]string{"type"},
	)
	c.gapsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gaps_detected_total",
			Help:      "Completed turns flagged as capability gaps, by agent",
		},
		[]string{"agent"},
	)
	c.capabilityRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_executions_total",
			Help:      "Capability executions, by name and result kind",
		},
		[]string{"name", "kind"},
	)
	c.capabilityDurations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_execution_duration_seconds",
			Help:      "Capability execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"name"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)
	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLLMRequest records one upstream generation call.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordSession records the start of one generation session.
func (c *Collector) RecordSession(agent string) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(agent).Inc()
}

// RecordHandoff records one conversation transfer.
func (c *Collector) RecordHandoff(from, to string) {
	if c == nil {
		return
	}
	c.handoffsTotal.WithLabelValues(from, to).Inc()
}

// RecordLoopDuration records the end-to-end duration of one handoff loop.
func (c *Collector) RecordLoopDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.loopDuration.Observe(d.Seconds())
}

// RecordEventForwarded records one outbound event.
func (c *Collector) RecordEventForwarded(eventType string) {
	if c == nil {
		return
	}
	c.eventsForwarded.WithLabelValues(eventType).Inc()
}

// RecordGapDetected records one detected capability gap.
func (c *Collector) RecordGapDetected(agent string) {
	if c == nil {
		return
	}
	c.gapsDetected.WithLabelValues(agent).Inc()
}

// RecordCapability records one capability execution.
func (c *Collector) RecordCapability(name, kind string, duration time.Duration) {
	if c == nil {
		return
	}
	c.capabilityRuns.WithLabelValues(name, kind).Inc()
	c.capabilityDurations.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
