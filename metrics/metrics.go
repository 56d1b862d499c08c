// Package metrics exposes the controller core's prometheus
// instrumentation: connection and datapath gauges plus counters for the
// codec, the dispatcher and transaction expiry. Everything registers on
// a package registry so the binary's REST surface can serve exposition
// without the core knowing about HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// ActiveConnections counts sockets currently open, in any state.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ofcore",
		Subsystem: "connections",
		Name:      "active",
		Help:      "Open switch connections, including those still in handshake",
	})

	// ConnectedDatapaths counts switches past the handshake.
	ConnectedDatapaths = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ofcore",
		Subsystem: "datapaths",
		Name:      "connected",
		Help:      "Datapaths currently registered as established",
	})

	// MessagesReceived counts frames decoded, by protocol version.
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "messages",
		Name:      "received_total",
		Help:      "Frames successfully decoded",
	}, []string{"version"})

	// MessagesSent counts frames written, by protocol version.
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "messages",
		Name:      "sent_total",
		Help:      "Frames encoded and queued for transmission",
	}, []string{"version"})

	// DecodeErrors counts connection-fatal decode failures, by kind.
	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "messages",
		Name:      "decode_errors_total",
		Help:      "Frames rejected by the codec",
	}, []string{"kind"})

	// EventsPublished counts dispatcher publishes, by event kind.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Events published to application components",
	}, []string{"kind"})

	// ComponentFailures counts isolated component errors and panics.
	ComponentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "dispatch",
		Name:      "component_failures_total",
		Help:      "Application component errors and panics during event handling",
	}, []string{"component"})

	// TransactionTimeouts counts requests expired without a reply.
	TransactionTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ofcore",
		Subsystem: "transactions",
		Name:      "timeouts_total",
		Help:      "Outstanding requests expired by the sweep timer",
	})
)

func init() {
	registry.MustRegister(
		ActiveConnections,
		ConnectedDatapaths,
		MessagesReceived,
		MessagesSent,
		DecodeErrors,
		EventsPublished,
		ComponentFailures,
		TransactionTimeouts,
	)
}

// MustRegister adds component collectors to the core's registry so
// they show up on the same exposition endpoint.
func MustRegister(cs ...prometheus.Collector) {
	registry.MustRegister(cs...)
}

// Handler returns the exposition endpoint for the core's registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
