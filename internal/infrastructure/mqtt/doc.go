// Package mqtt provides the broker transport for the lnbridge relay.
//
// This package manages:
//   - Connecting to the broker under the relay's node name
//   - Publishing and subscribing with bounded timeouts
//   - Buffering inbound messages until the relay loop pumps them
//
// # Architecture
//
// paho delivers messages on its own goroutines. The relay engine is
// single-threaded, so Transport decouples the two with a bounded channel:
//
//	broker → paho goroutine → inbound buffer → Pump (relay goroutine) → router
//
// paho's own reconnect loop is disabled. The relay decides when to call
// Connect, throttled to one attempt per reconnect interval.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers outside the layout network
//   - Credentials are checked against the broker ACL
//
// # Usage
//
//	tr := mqtt.NewTransport(cfg.MQTT)
//	tr.SetOnMessage(func(topic string, payload []byte) { ... })
//	if err := tr.Connect("IoTT-MQTT1234"); err != nil {
//	    // retry later
//	}
//	tr.Subscribe("lnIn")
//	tr.Pump()
package mqtt
