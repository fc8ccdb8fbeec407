package relay

import (
	"testing"
)

func newTestRouter(now Micros, handler Handler, metrics MetricsRecorder, peers *mockPeers) *Router {
	cfg := RouterConfig{
		Self:    "A",
		Topics:  DefaultTopics(),
		Now:     func() Micros { return now },
		Handler: handler,
		Metrics: metrics,
	}
	if peers != nil {
		cfg.Peers = peers
		cfg.Telemetry = peers
	}
	return NewRouter(cfg)
}

func mustEncode(t *testing.T, from string, msg RelayMessage) []byte {
	t.Helper()
	text, err := EncodeRelay(from, msg)
	if err != nil {
		t.Fatalf("EncodeRelay() error = %v", err)
	}
	return text
}

func TestRouterClassifiesEchoAndForeign(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		sent     RelayMessage
		wantEcho bool
		wantRTT  Micros
	}{
		{
			name:     "own message is echo",
			from:     "A",
			sent:     RelayMessage{Payload: []byte{0x81, 0x00}, RequestID: 7, ReceivedAt: 1000},
			wantEcho: true,
			wantRTT:  4000,
		},
		{
			name: "foreign message",
			from: "B",
			sent: RelayMessage{Payload: []byte{0xB0, 0x01, 0x30}, ReceivedAt: 1000, EchoRoundTrip: 77},
			// Foreign messages keep their carried timing.
			wantRTT: 77,
		},
		{
			name:     "echo across counter wrap",
			from:     "A",
			sent:     RelayMessage{Payload: []byte{0x83}, ReceivedAt: 0xFFFFF000},
			wantEcho: true,
			wantRTT:  0x1000 + 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []RelayMessage
			r := newTestRouter(5000, func(m RelayMessage) { got = append(got, m) }, nil, nil)

			if res := r.Route(DefaultBroadcastTopic, mustEncode(t, tt.from, tt.sent)); res != RouteDispatched {
				t.Fatalf("Route() = %v, want RouteDispatched", res)
			}
			if len(got) != 1 {
				t.Fatalf("handler called %d times, want 1", len(got))
			}
			if got[0].IsEcho() != tt.wantEcho {
				t.Errorf("IsEcho() = %v, want %v", got[0].IsEcho(), tt.wantEcho)
			}
			if got[0].EchoRoundTrip != tt.wantRTT {
				t.Errorf("EchoRoundTrip = %d, want %d", got[0].EchoRoundTrip, tt.wantRTT)
			}
			if got[0].From != tt.from {
				t.Errorf("From = %q, want %q", got[0].From, tt.from)
			}
		})
	}
}

func TestRouterOverridePriority(t *testing.T) {
	var defaultCalls, overrideCalls int
	r := newTestRouter(0, func(RelayMessage) { defaultCalls++ }, nil, nil)
	text := mustEncode(t, "B", RelayMessage{Payload: []byte{0x81}})

	r.Route(DefaultBroadcastTopic, text)
	if defaultCalls != 1 {
		t.Fatalf("default calls = %d, want 1", defaultCalls)
	}

	r.SetHandler(func(RelayMessage) { overrideCalls++ })
	r.Route(DefaultBroadcastTopic, text)
	if overrideCalls != 1 || defaultCalls != 1 {
		t.Fatalf("override/default calls = %d/%d, want 1/1", overrideCalls, defaultCalls)
	}

	r.SetHandler(nil)
	r.Route(DefaultBroadcastTopic, text)
	if overrideCalls != 1 || defaultCalls != 2 {
		t.Errorf("after clearing override calls = %d/%d, want 1/2", overrideCalls, defaultCalls)
	}
}

func TestRouterWithoutHandler(t *testing.T) {
	r := newTestRouter(0, nil, nil, nil)
	if res := r.Route(DefaultBroadcastTopic, mustEncode(t, "B", RelayMessage{Payload: []byte{1}})); res != RouteUnhandled {
		t.Errorf("Route() = %v, want RouteUnhandled", res)
	}
}

func TestRouterDropsMalformed(t *testing.T) {
	metrics := newMockMetrics()
	called := false
	r := newTestRouter(0, func(RelayMessage) { called = true }, metrics, nil)

	inputs := [][]byte{
		[]byte(`{"From":`),
		[]byte(`{"Data":[1,2]}`),
		[]byte(`{"From":"B","Data":[999]}`),
	}
	for _, in := range inputs {
		if res := r.Route(DefaultBroadcastTopic, in); res != RouteDropped {
			t.Errorf("Route(%s) = %v, want RouteDropped", in, res)
		}
	}
	if called {
		t.Error("handler called for malformed input")
	}
	if metrics.decodeFailed["broadcast"] != len(inputs) {
		t.Errorf("DecodeFailed(broadcast) = %d, want %d", metrics.decodeFailed["broadcast"], len(inputs))
	}
}

func TestRouterIgnoresNonRelayTopics(t *testing.T) {
	called := false
	r := newTestRouter(0, func(RelayMessage) { called = true }, nil, nil)
	text := mustEncode(t, "B", RelayMessage{Payload: []byte{1}})

	for _, topic := range []string{DefaultEchoTopic, "somewhere/else"} {
		if res := r.Route(topic, text); res != RouteIgnored {
			t.Errorf("Route(%q) = %v, want RouteIgnored", topic, res)
		}
	}
	if res := r.Route(DefaultBroadcastTopic, []byte(`{"From":"B"}`)); res != RouteIgnored {
		t.Errorf("Route() without Data = %v, want RouteIgnored", res)
	}
	if called {
		t.Error("handler called for ignored traffic")
	}
}

func TestRouterRecordsPeerHeartbeats(t *testing.T) {
	peers := &mockPeers{}
	called := false
	r := newTestRouter(0, func(RelayMessage) { called = true }, nil, peers)

	peer, _ := EncodeHeartbeat(HeartbeatMessage{From: "B", IP: "10.0.0.2", Uptime: 30})
	own, _ := EncodeHeartbeat(HeartbeatMessage{From: "A", IP: "10.0.0.1"})

	if res := r.Route(DefaultPingTopic, peer); res != RouteIgnored {
		t.Errorf("Route(ping) = %v, want RouteIgnored", res)
	}
	r.Route(DefaultPingTopic, own)

	if len(peers.peers) != 1 || peers.peers[0].From != "B" {
		t.Fatalf("recorded peers = %+v, want only B", peers.peers)
	}
	if len(peers.heartbeats) != 1 {
		t.Errorf("telemetry heartbeats = %d, want 1", len(peers.heartbeats))
	}
	if called {
		t.Error("handler called for a heartbeat")
	}
}

func TestRouterEchoTelemetry(t *testing.T) {
	peers := &mockPeers{}
	metrics := newMockMetrics()
	r := newTestRouter(3000, func(RelayMessage) {}, metrics, peers)

	r.Route(DefaultBroadcastTopic, mustEncode(t, "A", RelayMessage{Payload: []byte{1}, ReceivedAt: 1000}))
	r.Route(DefaultBroadcastTopic, mustEncode(t, "B", RelayMessage{Payload: []byte{1}}))

	if len(peers.echoes) != 1 || peers.echoes[0] != Micros(2000).Duration() {
		t.Errorf("echo telemetry = %v, want [2ms]", peers.echoes)
	}
	if len(metrics.rtts) != 1 {
		t.Errorf("EchoRoundTrip() calls = %d, want 1", len(metrics.rtts))
	}
	if metrics.dispatched[kindEcho] != 1 || metrics.dispatched[kindForeign] != 1 {
		t.Errorf("dispatched = %v, want one echo and one foreign", metrics.dispatched)
	}
}
