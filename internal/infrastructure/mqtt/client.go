package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/lnbridge/internal/infrastructure/config"
)

// Transport wraps paho.mqtt.golang as the relay engine's broker connection.
//
// Unlike a long-running service client, Transport never reconnects by itself:
// paho auto-reconnect is disabled and the relay lifecycle decides when to
// call Connect again. Inbound messages are buffered on a bounded channel and
// handed to the relay on its own goroutine by Pump.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The OnMessage callback only ever runs on the goroutine calling Pump.
type Transport struct {
	cfg            config.MQTTConfig
	connectTimeout time.Duration
	publishTimeout time.Duration

	client   pahomqtt.Client
	clientMu sync.RWMutex

	// newClient builds the paho client for each connection attempt.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	inbound chan inboundMessage
	dropped atomic.Uint64

	onMessage   func(topic string, payload []byte)
	onMessageMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// NewTransport creates a disconnected transport. Nothing touches the network
// until Connect is called.
func NewTransport(cfg config.MQTTConfig) *Transport {
	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Millisecond
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	publishTimeout := time.Duration(cfg.PublishTimeout) * time.Millisecond
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	buffer := cfg.InboundBuffer
	if buffer <= 0 {
		buffer = defaultInboundBuffer
	}

	return &Transport{
		cfg:            cfg,
		connectTimeout: connectTimeout,
		publishTimeout: publishTimeout,
		newClient:      pahomqtt.NewClient,
		inbound:        make(chan inboundMessage, buffer),
	}
}

// Connect opens a new broker session identified by clientID.
//
// Any previous session is closed first. The call returns within the
// configured connect timeout whether or not the broker answers.
//
// Returns:
//   - error: ErrConnectionFailed wrapping the cause
func (t *Transport) Connect(clientID string) error {
	if clientID == "" {
		return fmt.Errorf("%w: client ID cannot be empty", ErrConnectionFailed)
	}

	opts := buildClientOptions(t.cfg, clientID, t.connectTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleDisconnect(err)
	})

	client := t.newClient(opts)

	t.clientMu.Lock()
	old := t.client
	t.client = client
	t.clientMu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}

	token := client.Connect()
	if !token.WaitTimeout(t.connectTimeout) {
		// A late CONNACK must not leave a session nobody subscribed on.
		client.Disconnect(0)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, t.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// handleDisconnect is called by paho when an established connection drops.
func (t *Transport) handleDisconnect(err error) {
	if logger := t.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
}

// Close disconnects from the broker. Buffered inbound messages are kept
// until the next Pump.
func (t *Transport) Close() error {
	t.clientMu.Lock()
	client := t.client
	t.client = nil
	t.clientMu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

// HealthCheck reports whether the broker connection is alive.
func (t *Transport) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the live connection state as paho reports it.
func (t *Transport) IsConnected() bool {
	client := t.getClient()
	return client != nil && client.IsConnected()
}

// SetOnMessage sets the callback Pump delivers inbound messages to.
func (t *Transport) SetOnMessage(fn func(topic string, payload []byte)) {
	t.onMessageMu.Lock()
	t.onMessage = fn
	t.onMessageMu.Unlock()
}

// SetLogger sets a logger for connection and buffer warnings.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *Transport) getClient() pahomqtt.Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return t.client
}

func (t *Transport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}
