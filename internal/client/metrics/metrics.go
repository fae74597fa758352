// Package metrics defines the Prometheus collectors of the client: request
// outcomes of the gateway and the health of the notification channel.
//
// Collectors are registered on the Registerer passed to New so that several
// clients (and tests) never collide on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ticketdesk"

// Request outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeServerError  = "server_error"
	OutcomeNetworkError = "network_error"
	OutcomeOther        = "other"
)

// Inbound frame kinds used as the "kind" label.
const (
	FrameTicketUpdated = "ticket_updated"
	FrameUnknown       = "unknown"
	FrameMalformed     = "malformed"
	FrameHeartbeat     = "heartbeat"
)

type Metrics struct {
	// RequestsTotal counts gateway calls by outcome.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration measures gateway round trips by HTTP method.
	RequestDuration *prometheus.HistogramVec

	// ChannelConnected is 1 while a notification socket is open.
	ChannelConnected prometheus.Gauge
	// ChannelReconnectsTotal counts scheduled reconnect attempts.
	ChannelReconnectsTotal prometheus.Counter
	// ChannelExhaustedTotal counts loops that gave up at the attempt ceiling.
	ChannelExhaustedTotal prometheus.Counter
	// ChannelFramesTotal counts inbound frames by kind.
	ChannelFramesTotal *prometheus.CounterVec

	// AlertsTotal counts alerts raised, by level.
	AlertsTotal *prometheus.CounterVec
}

// New registers the client collectors on reg. A nil reg gets a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of API requests, by outcome.",
		}, []string{"outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of API round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ChannelConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "connected",
			Help:      "1 while the notification socket is open.",
		}),
		ChannelReconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "reconnects_total",
			Help:      "Total number of scheduled reconnect attempts.",
		}),
		ChannelExhaustedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "exhausted_total",
			Help:      "Total number of times the reconnect ceiling was reached.",
		}),
		ChannelFramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "frames_total",
			Help:      "Total number of inbound frames, by kind.",
		}, []string{"kind"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of user-facing alerts, by level.",
		}, []string{"level"}),
	}
}

// Handler serves the collectors registered on g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
