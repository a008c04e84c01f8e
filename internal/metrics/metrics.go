// Package metrics defines the Prometheus metrics exported on /metrics.
// Record helpers are safe to call on a nil *Metrics so components can run
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookEventsTotal     *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec
	EventsDroppedTotal     *prometheus.CounterVec

	// Conversation metrics
	TurnsTotal          *prometheus.CounterVec
	TurnDurationSeconds *prometheus.HistogramVec
	TranslationsTotal   *prometheus.CounterVec
	CommandsTotal       *prometheus.CounterVec
	ActivationsTotal    *prometheus.CounterVec

	// Session store metrics
	ActiveSessions        prometheus.Gauge
	SessionEvictionsTotal *prometheus.CounterVec

	// External call metrics
	ExternalCallsTotal          *prometheus.CounterVec
	ExternalCallDurationSeconds *prometheus.HistogramVec
	LLMFallbackTotal            *prometheus.CounterVec

	// Delivery metrics
	ChunksDeliveredTotal *prometheus.CounterVec
	DeliveryErrorsTotal  *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_webhook_events_total",
				Help: "Total number of inbound webhook events by channel, event type and status",
			},
			[]string{"channel", "event_type", "status"}, // event_type: message, postback, follow; status: accepted, skipped
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rtm_webhook_duration_seconds",
				Help:    "Time to acknowledge a webhook request by channel",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"channel"},
		),

		EventsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_events_dropped_total",
				Help: "Total number of inbound events dropped before dispatch",
			},
			[]string{"reason"}, // reason: no_sender, too_many_events, shutdown
		),

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_turns_total",
				Help: "Total number of conversation turns by dispatch state and status",
			},
			[]string{"state", "status"}, // status: success, error
		),

		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rtm_turn_duration_seconds",
				Help:    "Conversation turn duration in seconds by dispatch state",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 60}, // Matches 60s turn timeout
			},
			[]string{"state"},
		),

		TranslationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_translations_total",
				Help: "Total number of translations by language pair and status",
			},
			[]string{"source", "target", "status"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_commands_total",
				Help: "Total number of command executions by command and result",
			},
			[]string{"command", "result"}, // result: success, error, rate_limited
		),

		ActivationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_subscription_activations_total",
				Help: "Total number of subscription activation attempts by result",
			},
			[]string{"result"}, // result: activated, rejected, restored
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtm_active_sessions",
				Help: "Number of sessions held in memory",
			},
		),

		SessionEvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_session_evictions_total",
				Help: "Total number of sessions evicted by reason",
			},
			[]string{"reason"}, // reason: idle, capacity
		),

		ExternalCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_external_calls_total",
				Help: "Total number of external API calls by capability, provider and status",
			},
			[]string{"capability", "provider", "status"}, // capability: translate, explain, speech, vision, chat, image, send
		),

		ExternalCallDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rtm_external_call_duration_seconds",
				Help:    "External API call duration in seconds by capability and provider",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20}, // Matches 20s external call timeout
			},
			[]string{"capability", "provider"},
		),

		LLMFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_llm_fallback_total",
				Help: "Total number of LLM fallbacks between providers",
			},
			[]string{"from_provider", "to_provider", "capability"},
		),

		ChunksDeliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_chunks_delivered_total",
				Help: "Total number of outbound messages delivered by channel and kind",
			},
			[]string{"channel", "kind"}, // kind: text, image, audio
		),

		DeliveryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_delivery_errors_total",
				Help: "Total number of failed outbound deliveries by channel",
			},
			[]string{"channel"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: llm, global
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtm_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"module"}, // module: speech
		),
	}
}

// RecordWebhook records an inbound event and the acknowledgment latency
func (m *Metrics) RecordWebhook(channel, eventType, status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(channel, eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(channel).Observe(duration)
}

// RecordEventDropped records an event discarded before dispatch
func (m *Metrics) RecordEventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordTurn records a completed conversation turn
func (m *Metrics) RecordTurn(state, status string, duration float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(state, status).Inc()
	m.TurnDurationSeconds.WithLabelValues(state).Observe(duration)
}

// RecordTranslation records a translation attempt
func (m *Metrics) RecordTranslation(source, target, status string) {
	if m == nil {
		return
	}
	m.TranslationsTotal.WithLabelValues(source, target, status).Inc()
}

// RecordCommand records a command execution
func (m *Metrics) RecordCommand(command, result string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordActivation records a subscription activation attempt
func (m *Metrics) RecordActivation(result string) {
	if m == nil {
		return
	}
	m.ActivationsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions updates the session gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordSessionEviction records sessions removed by the sweep
func (m *Metrics) RecordSessionEviction(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionEvictionsTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordExternalCall records an external API call
func (m *Metrics) RecordExternalCall(capability, provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.ExternalCallsTotal.WithLabelValues(capability, provider, status).Inc()
	m.ExternalCallDurationSeconds.WithLabelValues(capability, provider).Observe(duration)
}

// RecordLLMFallback records a provider switch inside a fallback chain
func (m *Metrics) RecordLLMFallback(from, to, capability string) {
	if m == nil {
		return
	}
	m.LLMFallbackTotal.WithLabelValues(from, to, capability).Inc()
}

// RecordDelivery records one outbound message
func (m *Metrics) RecordDelivery(channel, kind string) {
	if m == nil {
		return
	}
	m.ChunksDeliveredTotal.WithLabelValues(channel, kind).Inc()
}

// RecordDeliveryError records a failed outbound message
func (m *Metrics) RecordDeliveryError(channel string) {
	if m == nil {
		return
	}
	m.DeliveryErrorsTotal.WithLabelValues(channel).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	if m == nil {
		return
	}
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}
