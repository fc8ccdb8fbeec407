package relay

import "errors"

// Handler receives every message routed from the broadcast topic, echo or foreign.
type Handler func(msg RelayMessage)

// RouteResult reports what Router.Route did with an inbound message.
type RouteResult int

const (
	// RouteIgnored means the message was observed but is not relay traffic
	// (ping, echo topic, envelope without data).
	RouteIgnored RouteResult = iota

	// RouteDropped means the message failed to decode.
	RouteDropped

	// RouteDispatched means a handler received the message.
	RouteDispatched

	// RouteUnhandled means the message was classified but no handler is set.
	RouteUnhandled
)

// Dispatch kinds used for metrics labels.
const (
	kindEcho    = "echo"
	kindForeign = "foreign"
)

// Router classifies inbound messages as self-echo or foreign traffic and
// hands each one to exactly one handler. It never buffers.
type Router struct {
	self   string
	topics Topics
	now    func() Micros

	// override wins over fallback when both are set.
	override Handler
	fallback Handler

	logger    Logger
	metrics   MetricsRecorder
	telemetry TelemetryWriter
	peers     PeerRecorder
}

// RouterConfig holds the settings for NewRouter.
type RouterConfig struct {
	// Self is this node's resolved name.
	Self string

	Topics Topics

	// Now returns the current monotonic microsecond time.
	Now func() Micros

	// Handler is the default handler, used when no override is set.
	Handler Handler

	Logger    Logger
	Metrics   MetricsRecorder
	Telemetry TelemetryWriter
	Peers     PeerRecorder
}

// NewRouter creates a router for node cfg.Self.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		self:      cfg.Self,
		topics:    cfg.Topics,
		now:       cfg.Now,
		fallback:  cfg.Handler,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		telemetry: cfg.Telemetry,
		peers:     cfg.Peers,
	}
}

// SetHandler installs an override handler. Passing nil removes the override
// and restores the default handler.
func (r *Router) SetHandler(h Handler) {
	r.override = h
}

// Route processes one raw inbound message.
//
// Heartbeats from other nodes on the ping topic are handed to the peer
// recorder for discovery; the node's own heartbeats are ignored. Messages
// on the broadcast topic are decoded, classified and dispatched. Anything
// else, including the echo topic, is observed and ignored.
func (r *Router) Route(topic string, payload []byte) RouteResult {
	if topic == r.topics.Ping {
		r.observePing(payload)
		if topic != r.topics.Broadcast {
			return RouteIgnored
		}
	}
	if topic != r.topics.Broadcast {
		return RouteIgnored
	}

	env, err := DecodeRelay(payload)
	if err != nil {
		r.decodeFailed(topic, err)
		return RouteDropped
	}
	if !env.HasPayload {
		return RouteIgnored
	}

	return r.dispatch(r.Classify(env.Message))
}

// Classify marks msg as an echo when it carries this node's name and computes
// the round trip from the carried ReceivedAt timestamp. Foreign messages
// never carry FlagEcho.
func (r *Router) Classify(msg RelayMessage) RelayMessage {
	if msg.From != r.self {
		msg.Flags &^= FlagEcho
		return msg
	}

	msg.Flags |= FlagEcho
	msg.EchoRoundTrip = r.now().Sub(msg.ReceivedAt)

	if r.metrics != nil {
		r.metrics.EchoRoundTrip(msg.EchoRoundTrip.Duration())
	}
	if r.telemetry != nil {
		r.telemetry.WriteEchoRoundTrip(r.self, msg.EchoRoundTrip.Duration())
	}
	return msg
}

// dispatch hands msg to the override or default handler.
func (r *Router) dispatch(msg RelayMessage) RouteResult {
	h := r.override
	if h == nil {
		h = r.fallback
	}
	if h == nil {
		if r.logger != nil {
			r.logger.Debug("no relay handler set, message dropped", "from", msg.From)
		}
		return RouteUnhandled
	}

	if r.metrics != nil {
		kind := kindForeign
		if msg.IsEcho() {
			kind = kindEcho
		}
		r.metrics.Dispatched(kind)
	}

	h(msg)
	return RouteDispatched
}

// observePing records heartbeats from other nodes.
func (r *Router) observePing(payload []byte) {
	hb, err := DecodeHeartbeat(payload)
	if err != nil {
		r.decodeFailed(r.topics.Ping, err)
		return
	}
	if hb.From == r.self {
		return
	}

	if r.logger != nil {
		r.logger.Debug("heartbeat from peer", "node", hb.From, "ip", hb.IP)
	}
	if r.peers != nil {
		r.peers.RecordPeer(hb)
	}
	if r.telemetry != nil {
		r.telemetry.WritePeerHeartbeat(hb)
	}
}

func (r *Router) decodeFailed(topic string, err error) {
	if r.metrics != nil {
		r.metrics.DecodeFailed(r.topics.role(topic))
	}
	if r.logger == nil {
		return
	}
	reason := "malformed"
	if errors.Is(err, ErrMissingIdentity) {
		reason = "missing_identity"
	}
	r.logger.Debug("inbound message dropped", "topic", topic, "reason", reason, "error", err)
}

// setTopics replaces the topic names used for classification.
func (r *Router) setTopics(t Topics) {
	r.topics = t
}
