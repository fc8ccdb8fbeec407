package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe subscribes to topic at the configured QoS.
//
// Received messages are buffered and delivered by Pump. Subscriptions are
// not tracked: the relay resubscribes after every successful Connect.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (t *Transport) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if t.cfg.QoS < 0 || t.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}

	client := t.getClient()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, byte(t.cfg.QoS), t.receive)
	if !token.WaitTimeout(t.publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, t.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// receive is the paho message handler. It runs on paho's goroutine and only
// copies the message into the inbound buffer.
func (t *Transport) receive(_ pahomqtt.Client, msg pahomqtt.Message) {
	t.buffer(msg.Topic(), msg.Payload())
}
