package mqtt

// inboundMessage is one received message waiting for Pump.
type inboundMessage struct {
	topic   string
	payload []byte
}

// buffer queues a received message. When the buffer is full the newest
// message is dropped and counted; paho's goroutine never blocks on the relay.
func (t *Transport) buffer(topic string, payload []byte) {
	p := make([]byte, len(payload))
	copy(p, payload)

	select {
	case t.inbound <- inboundMessage{topic: topic, payload: p}:
	default:
		n := t.dropped.Add(1)
		if logger := t.getLogger(); logger != nil {
			logger.Warn("MQTT inbound buffer full, message dropped",
				"topic", topic,
				"dropped_total", n,
			)
		}
	}
}

// Pump delivers the messages buffered so far to the OnMessage callback on
// the caller's goroutine and returns how many it delivered. It never waits
// for new messages; ones arriving during the call are left for the next Pump.
func (t *Transport) Pump() int {
	t.onMessageMu.RLock()
	fn := t.onMessage
	t.onMessageMu.RUnlock()

	pending := len(t.inbound)
	delivered := 0
	for i := 0; i < pending; i++ {
		var msg inboundMessage
		select {
		case msg = <-t.inbound:
		default:
			return delivered
		}
		if fn != nil {
			t.deliver(fn, msg)
		}
		delivered++
	}
	return delivered
}

// deliver calls fn with panic recovery so one bad message cannot stop the relay.
func (t *Transport) deliver(fn func(topic string, payload []byte), msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Error("MQTT message handler panic recovered",
					"topic", msg.topic,
					"panic", r,
				)
			}
		}
	}()
	fn(msg.topic, msg.payload)
}

// Buffered returns the number of inbound messages waiting for Pump.
func (t *Transport) Buffered() int {
	return len(t.inbound)
}

// Dropped returns the number of inbound messages lost to a full buffer.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}
