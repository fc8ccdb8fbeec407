package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	subscribeErr error
	publishErr   error
	connectCalls []string
	subscribed   []string
	published    []mockPublish
	inbound      []mockPublish
	pumps        int
	onMessage    func(topic string, payload []byte)
}

type mockPublish struct {
	Topic   string
	Payload []byte
}

func newMockTransport() *mockTransport {
	return &mockTransport{}
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) Connect(clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls = append(m.connectCalls, clientID)
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockTransport) Subscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribed = append(m.subscribed, topic)
	return nil
}

func (m *mockTransport) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	m.published = append(m.published, mockPublish{Topic: topic, Payload: p})
	return nil
}

func (m *mockTransport) SetOnMessage(fn func(topic string, payload []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = fn
}

func (m *mockTransport) Pump() int {
	m.mu.Lock()
	pending := m.inbound
	m.inbound = nil
	m.pumps++
	fn := m.onMessage
	m.mu.Unlock()

	for _, msg := range pending {
		if fn != nil {
			fn(msg.Topic, msg.Payload)
		}
	}
	return len(pending)
}

// SimulateMessage buffers an inbound message for the next Pump.
func (m *mockTransport) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, mockPublish{Topic: topic, Payload: payload})
}

func (m *mockTransport) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *mockTransport) setPublishErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *mockTransport) setConnectErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

func (m *mockTransport) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]mockPublish, len(m.published))
	copy(result, m.published)
	return result
}

func (m *mockTransport) getConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connectCalls)
}

func (m *mockTransport) getSubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.subscribed))
	copy(result, m.subscribed)
	return result
}

func (m *mockTransport) getPumps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pumps
}

// mockMetrics implements MetricsRecorder for testing.
type mockMetrics struct {
	published     map[string]int
	publishFailed map[string]int
	decodeFailed  map[string]int
	dispatched    map[string]int
	overflows     int
	heartbeats    int
	depth         int
	connected     []bool
	rtts          []time.Duration
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		published:     make(map[string]int),
		publishFailed: make(map[string]int),
		decodeFailed:  make(map[string]int),
		dispatched:    make(map[string]int),
	}
}

func (m *mockMetrics) Published(channel string)        { m.published[channel]++ }
func (m *mockMetrics) PublishFailed(channel string)    { m.publishFailed[channel]++ }
func (m *mockMetrics) Overflow()                       { m.overflows++ }
func (m *mockMetrics) DecodeFailed(channel string)     { m.decodeFailed[channel]++ }
func (m *mockMetrics) Dispatched(kind string)          { m.dispatched[kind]++ }
func (m *mockMetrics) HeartbeatSent()                  { m.heartbeats++ }
func (m *mockMetrics) QueueDepth(n int)                { m.depth = n }
func (m *mockMetrics) Connected(connected bool)        { m.connected = append(m.connected, connected) }
func (m *mockMetrics) EchoRoundTrip(rtt time.Duration) { m.rtts = append(m.rtts, rtt) }

// mockPeers implements PeerRecorder and TelemetryWriter for testing.
type mockPeers struct {
	peers      []HeartbeatMessage
	heartbeats []HeartbeatMessage
	echoes     []time.Duration
}

func (m *mockPeers) RecordPeer(hb HeartbeatMessage) { m.peers = append(m.peers, hb) }

func (m *mockPeers) WritePeerHeartbeat(hb HeartbeatMessage) {
	m.heartbeats = append(m.heartbeats, hb)
}

func (m *mockPeers) WriteEchoRoundTrip(_ string, rtt time.Duration) {
	m.echoes = append(m.echoes, rtt)
}

// mockHost implements HostInfo for testing.
type mockHost struct{}

func (mockHost) LocalIP() string     { return "192.168.1.20" }
func (mockHost) SignalStrength() int { return -61 }
func (mockHost) FreeMemory() uint64  { return 123456 }

// newTestEngine builds an engine on a mock transport and a mock clock.
// The clock is advanced one second before construction so the epoch is not
// the zero time.
func newTestEngine(t *testing.T, opts Options) (*Engine, *mockTransport, *clock.Mock) {
	t.Helper()

	tr := newMockTransport()
	clk := clock.NewMock()
	clk.Add(time.Second)

	opts.Transport = tr
	opts.Clock = clk
	if opts.NodeName == "" {
		opts.NodeName = "A"
	}

	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e, tr, clk
}
