package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultReconnectInterval is the minimum time between connection attempts.
const DefaultReconnectInterval = 5 * time.Second

// ConnectionState is the broker connection state.
type ConnectionState int

const (
	// Disconnected means the transport reports no broker connection.
	Disconnected ConnectionState = iota

	// Connected means the transport reports a live broker connection.
	Connected
)

// String returns "connected" or "disconnected".
func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Lifecycle decides when to (re)connect to the broker and resubscribes after
// every successful connect. The transport is the source of truth for the
// connection state; Lifecycle never caches it across ticks.
type Lifecycle struct {
	transport Transport
	clock     clock.Clock
	clientID  string
	topics    Topics
	interval  time.Duration

	// lastAttempt is only meaningful while throttled is true.
	lastAttempt time.Time
	throttled   bool

	// wasConnected remembers the previous tick's state to report transitions.
	wasConnected bool

	attempts int
	logger   Logger
	metrics  MetricsRecorder
}

// LifecycleConfig holds the settings for NewLifecycle.
type LifecycleConfig struct {
	Transport Transport
	Clock     clock.Clock
	ClientID  string
	Topics    Topics

	// Interval is the minimum retry interval. Default: DefaultReconnectInterval.
	Interval time.Duration

	Logger  Logger
	Metrics MetricsRecorder
}

// NewLifecycle creates a lifecycle in the Disconnected state.
// The first AttemptConnect is not throttled.
func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Lifecycle{
		transport: cfg.Transport,
		clock:     clk,
		clientID:  cfg.ClientID,
		topics:    cfg.Topics,
		interval:  interval,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// IsConnected asks the transport for the current connection state.
func (l *Lifecycle) IsConnected() bool {
	return l.transport.IsConnected()
}

// State returns the current ConnectionState.
func (l *Lifecycle) State() ConnectionState {
	if l.IsConnected() {
		return Connected
	}
	return Disconnected
}

// Attempts returns the number of real connection attempts made so far.
func (l *Lifecycle) Attempts() int {
	return l.attempts
}

// Tick re-derives the connection state and, when disconnected, makes a
// throttled reconnect attempt. It reports whether the broker is connected
// once the attempt (if any) has finished.
func (l *Lifecycle) Tick() bool {
	if l.IsConnected() {
		l.noteState(true)
		return true
	}
	l.noteState(false)

	attempted, err := l.AttemptConnect()
	if !attempted {
		return false
	}
	if err != nil {
		if errors.Is(err, ErrSubscribeFailed) {
			l.logWarn("subscription failed after connect", "error", err)
		} else {
			l.logWarn("broker connection failed", "client_id", l.clientID, "error", err)
			return false
		}
	}

	connected := l.IsConnected()
	if connected {
		l.logInfo("broker connected", "client_id", l.clientID)
	}
	l.noteState(connected)
	return connected
}

// AttemptConnect connects and subscribes to the broadcast, ping and echo
// topics, unless the previous attempt was less than the retry interval ago.
//
// Returns attempted=false when throttled. A failed attempt arms the throttle;
// a successful one clears it so a later drop is retried at once.
func (l *Lifecycle) AttemptConnect() (attempted bool, err error) {
	now := l.clock.Now()
	if l.throttled && now.Sub(l.lastAttempt) <= l.interval {
		return false, nil
	}

	l.lastAttempt = now
	l.throttled = true
	l.attempts++

	if err := l.transport.Connect(l.clientID); err != nil {
		return true, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	l.throttled = false

	var errs []error
	for _, topic := range []string{l.topics.Broadcast, l.topics.Ping, l.topics.Echo} {
		if err := l.transport.Subscribe(topic); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}
	if len(errs) > 0 {
		return true, fmt.Errorf("%w: %w", ErrSubscribeFailed, errors.Join(errs...))
	}
	return true, nil
}

// setTopics replaces the topics used on the next (re)subscription.
func (l *Lifecycle) setTopics(t Topics) {
	l.topics = t
}

// noteState logs and records connection transitions.
func (l *Lifecycle) noteState(connected bool) {
	if connected == l.wasConnected {
		return
	}
	if !connected {
		l.logWarn("broker connection lost", "client_id", l.clientID)
	}
	l.wasConnected = connected
	if l.metrics != nil {
		l.metrics.Connected(connected)
	}
}

func (l *Lifecycle) logInfo(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

func (l *Lifecycle) logWarn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
