package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// Transport is the broker capability set the engine relies on.
// The MQTT transport in internal/infrastructure/mqtt implements it.
type Transport interface {
	// IsConnected reports the live connection state.
	IsConnected() bool

	// Connect opens a session using clientID. Must return within a bounded time.
	Connect(clientID string) error

	// Subscribe subscribes to one topic.
	Subscribe(topic string) error

	// Publish sends payload to topic. Must return within a bounded time.
	Publish(topic string, payload []byte) error

	// SetOnMessage registers the callback Pump delivers inbound messages to.
	SetOnMessage(fn func(topic string, payload []byte))

	// Pump delivers buffered inbound messages on the caller's goroutine and
	// returns how many were delivered. It must not block.
	Pump() int
}

// Logger is the logging interface used by the relay.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// HostInfo supplies the observational fields of a heartbeat.
type HostInfo interface {
	LocalIP() string
	SignalStrength() int
	FreeMemory() uint64
}

// MetricsRecorder receives relay counters. Implementations must not block.
type MetricsRecorder interface {
	Published(channel string)
	PublishFailed(channel string)
	Overflow()
	DecodeFailed(channel string)
	Dispatched(kind string)
	HeartbeatSent()
	QueueDepth(n int)
	Connected(connected bool)
	EchoRoundTrip(rtt time.Duration)
}

// TelemetryWriter stores timing data points. Implementations must not block.
type TelemetryWriter interface {
	WriteEchoRoundTrip(node string, rtt time.Duration)
	WritePeerHeartbeat(hb HeartbeatMessage)
}

// PeerRecorder records nodes seen on the ping topic. Implementations must not block.
type PeerRecorder interface {
	RecordPeer(hb HeartbeatMessage)
}

// Options holds configuration for creating an Engine.
type Options struct {
	// Transport is the broker connection. Required.
	Transport Transport

	// NodeName is the base node name. Default: DefaultNodeName.
	NodeName string

	// UseHardwareSuffix appends HardwareID() to NodeName.
	UseHardwareSuffix bool

	// HardwareID supplies the suffix when UseHardwareSuffix is set.
	HardwareID HardwareIDFunc

	// Topics are the channel names. Empty names take the defaults.
	Topics Topics

	// QueueSize is the number of outbound ring slots. Default: DefaultQueueSize.
	QueueSize int

	// ReconnectInterval is the minimum time between connection attempts.
	// Default: DefaultReconnectInterval.
	ReconnectInterval time.Duration

	// HeartbeatInterval is the time between heartbeats; zero disables them.
	HeartbeatInterval time.Duration

	// Handler is the default handler for routed messages. May be nil.
	Handler Handler

	// Clock is the time source. Default: the system clock.
	Clock clock.Clock

	// Host supplies heartbeat fields. Optional.
	Host HostInfo

	// Logger is optional.
	Logger Logger

	// Metrics is optional.
	Metrics MetricsRecorder

	// Telemetry is optional.
	Telemetry TelemetryWriter

	// Peers is optional.
	Peers PeerRecorder
}

// Engine is the relay loop. It owns the outbound queue, the connection
// lifecycle, the heartbeat schedule and the inbound router for one node.
//
// Not safe for concurrent use: Tick, Enqueue, Forward and the setters must be
// called from the same goroutine.
type Engine struct {
	name      string
	topics    Topics
	transport Transport
	clock     clock.Clock
	epoch     time.Time

	queue     *Queue
	lifecycle *Lifecycle
	heartbeat *HeartbeatScheduler
	router    *Router

	host    HostInfo
	logger  Logger
	metrics MetricsRecorder
}

// NewEngine resolves the node identity and wires the relay components.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}

	name, err := ResolveIdentity(Identity{
		BaseName:          opts.NodeName,
		UseHardwareSuffix: opts.UseHardwareSuffix,
	}, opts.HardwareID)
	if err != nil {
		return nil, err
	}

	topics := opts.Topics.withDefaults()
	if err := topics.Validate(); err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	e := &Engine{
		name:      name,
		topics:    topics,
		transport: opts.Transport,
		clock:     clk,
		epoch:     clk.Now(),
		queue:     NewQueue(opts.QueueSize),
		host:      opts.Host,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}

	e.lifecycle = NewLifecycle(LifecycleConfig{
		Transport: opts.Transport,
		Clock:     clk,
		ClientID:  name,
		Topics:    topics,
		Interval:  opts.ReconnectInterval,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	e.heartbeat = NewHeartbeatScheduler(opts.HeartbeatInterval, e.epoch)
	e.router = NewRouter(RouterConfig{
		Self:      name,
		Topics:    topics,
		Now:       e.Now,
		Handler:   opts.Handler,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
		Telemetry: opts.Telemetry,
		Peers:     opts.Peers,
	})

	opts.Transport.SetOnMessage(func(topic string, payload []byte) {
		e.router.Route(topic, payload)
	})

	return e, nil
}

// Tick runs one iteration of the relay loop and returns.
//
// When disconnected it only makes a throttled reconnect attempt. When
// connected it pumps the transport, tries to publish one queued message and
// sends one heartbeat if due.
func (e *Engine) Tick() {
	if !e.lifecycle.Tick() {
		return
	}

	e.transport.Pump()
	e.drainOne()
	e.checkHeartbeat()
}

// Enqueue queues a fresh bus command for publication on the broadcast topic.
// Timing fields start at zero and ReceivedAt is stamped now.
func (e *Engine) Enqueue(cmd Command) error {
	return e.enqueue(RelayMessage{
		Payload:    cmd.Payload,
		RequestID:  cmd.RequestID,
		ReceivedAt: e.Now(),
	})
}

// Forward queues a message handed back by the bus driver, keeping its
// timing fields and flags. ReceivedAt is stamped now. Messages carrying
// FlagEcho are published on the echo topic.
func (e *Engine) Forward(msg RelayMessage) error {
	msg.ReceivedAt = e.Now()
	return e.enqueue(msg)
}

func (e *Engine) enqueue(msg RelayMessage) error {
	if err := e.queue.Enqueue(msg); err != nil {
		if e.logger != nil {
			e.logger.Warn("relay queue rejected message",
				"request_id", msg.RequestID,
				"pending", e.queue.Len(),
				"error", err)
		}
		if e.metrics != nil && errors.Is(err, ErrOverflow) {
			e.metrics.Overflow()
		}
		return err
	}
	e.recordQueueDepth()
	return nil
}

// drainOne publishes at most one queued message.
func (e *Engine) drainOne() {
	var topic string
	result, err := e.queue.TryDrainOne(func(msg RelayMessage) error {
		topic = e.topics.Broadcast
		if msg.IsEcho() {
			topic = e.topics.Echo
		}

		// Enqueue validated the payload, so encoding cannot fail here.
		text, err := EncodeRelay(e.name, msg)
		if err != nil {
			return err
		}

		if err := e.transport.Publish(topic, text); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
		}
		return nil
	})

	switch result {
	case Drained:
		if e.metrics != nil {
			e.metrics.Published(e.topics.role(topic))
		}
		e.recordQueueDepth()
	case DrainPublishFailed:
		if e.metrics != nil {
			e.metrics.PublishFailed(e.topics.role(topic))
		}
		if e.logger != nil {
			e.logger.Warn("relay publish failed, will retry", "topic", topic, "error", err)
		}
	}
}

// checkHeartbeat sends one heartbeat when due.
func (e *Engine) checkHeartbeat() {
	now := e.clock.Now()
	if !e.heartbeat.DueNow(now) {
		return
	}

	text, err := EncodeHeartbeat(e.buildHeartbeat(now))
	if err != nil {
		if e.logger != nil {
			e.logger.Error("encoding heartbeat", "error", err)
		}
		return
	}

	if err := e.transport.Publish(e.topics.Ping, text); err != nil {
		if e.logger != nil {
			e.logger.Warn("heartbeat publish failed, will retry", "topic", e.topics.Ping, "error", err)
		}
		return
	}

	e.heartbeat.Sent()
	if e.metrics != nil {
		e.metrics.HeartbeatSent()
	}
}

func (e *Engine) buildHeartbeat(now time.Time) HeartbeatMessage {
	hb := HeartbeatMessage{
		From:   e.name,
		Uptime: uint32(now.Sub(e.epoch).Round(time.Second) / time.Second),
	}
	if e.host != nil {
		hb.IP = e.host.LocalIP()
		hb.SigStrength = e.host.SignalStrength()
		hb.Mem = e.host.FreeMemory()
	}
	return hb
}

// SetHandler installs an override handler for routed messages; nil restores
// the default handler given in Options.
func (e *Engine) SetHandler(h Handler) {
	e.router.SetHandler(h)
}

// SetTopics changes the channel names. Publishing and routing use the new
// names at once; subscriptions change on the next (re)connect.
func (e *Engine) SetTopics(t Topics) error {
	t = t.withDefaults()
	if err := t.Validate(); err != nil {
		return err
	}
	e.topics = t
	e.lifecycle.setTopics(t)
	e.router.setTopics(t)
	return nil
}

// SetHeartbeatInterval changes the heartbeat interval; zero disables
// heartbeats. The next heartbeat is due one interval from now.
func (e *Engine) SetHeartbeatInterval(interval time.Duration) {
	e.heartbeat.SetInterval(interval, e.clock.Now())
}

// Now returns the engine's monotonic microsecond time.
func (e *Engine) Now() Micros {
	return Micros(uint64(e.clock.Since(e.epoch) / time.Microsecond))
}

// NodeName returns the resolved node name.
func (e *Engine) NodeName() string {
	return e.name
}

// Topics returns the current channel names.
func (e *Engine) Topics() Topics {
	return e.topics
}

// State returns the broker connection state.
func (e *Engine) State() ConnectionState {
	return e.lifecycle.State()
}

// QueueLen returns the number of pending outbound messages.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// QueueCap returns the maximum number of pending outbound messages.
func (e *Engine) QueueCap() int {
	return e.queue.Cap()
}

// NextHeartbeat returns when the next heartbeat is due.
func (e *Engine) NextHeartbeat() time.Time {
	return e.heartbeat.Deadline()
}

func (e *Engine) recordQueueDepth() {
	if e.metrics != nil {
		e.metrics.QueueDepth(e.queue.Len())
	}
}
