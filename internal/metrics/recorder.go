package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "lnbridge"
	subsystem = "relay"
)

// rttBuckets spans a LAN broker (a few ms) up to a congested uplink.
var rttBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Recorder holds the relay's Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry
	labels   prometheus.Labels

	published     *prometheus.CounterVec
	publishFailed *prometheus.CounterVec
	overflows     prometheus.Counter
	decodeFailed  *prometheus.CounterVec
	dispatched    *prometheus.CounterVec
	heartbeats    prometheus.Counter
	queueDepth    prometheus.Gauge
	connected     prometheus.Gauge
	echoRTT       prometheus.Histogram
}

// New creates a Recorder for node on a fresh registry that also carries the
// Go runtime and process collectors.
func New(node string) *Recorder {
	labels := prometheus.Labels{"node": node}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		labels:   labels,
		published: prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("published_total", "Messages published to the broker."),
		), []string{"channel"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("publish_failures_total", "Publish attempts that failed and were left queued."),
		), []string{"channel"}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts(
			opts("queue_overflows_total", "Messages rejected because the outbound queue was full."),
		)),
		decodeFailed: prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("decode_failures_total", "Inbound payloads that could not be decoded."),
		), []string{"channel"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("dispatched_total", "Inbound messages handed to the bus handler."),
		), []string{"kind"}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts(
			opts("heartbeats_sent_total", "Heartbeats published on the ping channel."),
		)),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts(
			opts("queue_depth", "Messages waiting in the outbound queue."),
		)),
		connected: prometheus.NewGauge(prometheus.GaugeOpts(
			opts("connected", "1 while the broker session is up."),
		)),
		echoRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "echo_round_trip_seconds",
			Help:        "Time from local receipt to the broker echoing the message back.",
			ConstLabels: labels,
			Buckets:     rttBuckets,
		}),
	}

	r.registry.MustRegister(
		r.published,
		r.publishFailed,
		r.overflows,
		r.decodeFailed,
		r.dispatched,
		r.heartbeats,
		r.queueDepth,
		r.connected,
		r.echoRTT,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RegisterCounterFunc exposes a counter owned by another component, such as
// the transport's inbound drop count. Registering the same name twice fails.
func (r *Recorder) RegisterCounterFunc(name, help string, fn func() float64) error {
	return r.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, fn))
}

// Published counts a successful publish on channel.
func (r *Recorder) Published(channel string) {
	r.published.WithLabelValues(channel).Inc()
}

// PublishFailed counts a failed publish on channel.
func (r *Recorder) PublishFailed(channel string) {
	r.publishFailed.WithLabelValues(channel).Inc()
}

// Overflow counts a message rejected by a full queue.
func (r *Recorder) Overflow() {
	r.overflows.Inc()
}

// DecodeFailed counts an undecodable payload received on channel.
func (r *Recorder) DecodeFailed(channel string) {
	r.decodeFailed.WithLabelValues(channel).Inc()
}

// Dispatched counts a message of kind (echo or foreign) handed to the bus.
func (r *Recorder) Dispatched(kind string) {
	r.dispatched.WithLabelValues(kind).Inc()
}

// HeartbeatSent counts a published heartbeat.
func (r *Recorder) HeartbeatSent() {
	r.heartbeats.Inc()
}

// QueueDepth sets the outbound queue gauge.
func (r *Recorder) QueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}

// Connected sets the connection gauge.
func (r *Recorder) Connected(connected bool) {
	if connected {
		r.connected.Set(1)
		return
	}
	r.connected.Set(0)
}

// EchoRoundTrip observes one echo round trip.
func (r *Recorder) EchoRoundTrip(rtt time.Duration) {
	r.echoRTT.Observe(rtt.Seconds())
}
