// Package metrics wires the optional Prometheus sampler. The normalizer,
// builder and emitter never import it (the emitter is only handed a drop
// counter); the session supervisor holds an optional *Registry, nil when
// metrics are disabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors exposed by the feeder.
type Registry struct {
	ActiveSessions    prometheus.Gauge
	PacketsSent       prometheus.Counter
	BytesSent         prometheus.Counter
	DatagramsDropped  prometheus.Counter
	SessionRetries    *prometheus.CounterVec
	SequenceHighWater prometheus.Gauge
	ParseErrors       prometheus.Counter
}

// NewRegistry constructs every collector and registers it with the
// default Prometheus registry.
func NewRegistry() *Registry {
	return &Registry{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "odin_feed_active_sessions",
			Help: "Number of sessions currently in the CONNECTED state.",
		}),
		PacketsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "odin_feed_packets_sent_total",
			Help: "Total number of UDP datagrams successfully sent.",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "odin_feed_bytes_sent_total",
			Help: "Total number of bytes successfully sent.",
		}),
		DatagramsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "odin_feed_datagrams_dropped_total",
			Help: "Total number of datagrams dropped (WOULDBLOCK).",
		}),
		SessionRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_feed_session_retries_total",
			Help: "Total number of reconnect attempts, by session.",
		}, []string{"session"}),
		SequenceHighWater: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "odin_feed_sequence_high_water",
			Help: "Highest sequence number issued so far.",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "odin_feed_parse_errors_total",
			Help: "Total number of normalizer parse failures.",
		}),
	}
}

// Handler returns an HTTP handler exposing the collectors for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
