package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages. Relay envelopes are a few hundred
// bytes at most, so anything near this is a bug upstream.
const maxPayloadSize = 64 << 10

// Publish sends payload to topic at the configured QoS, not retained.
//
// The call returns within the configured publish timeout. A timed-out
// publish is reported as failed so the relay keeps the message queued.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (t *Transport) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if t.cfg.QoS < 0 || t.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client := t.getClient()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, byte(t.cfg.QoS), false, payload)
	if !token.WaitTimeout(t.publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, t.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
