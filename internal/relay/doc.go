// Package relay implements the bus-to-broker relay engine of lnbridge.
//
// The engine forwards command-bus traffic (opaque byte frames) to an MQTT
// broker and back. Several bridge nodes share three topics:
//
//   - broadcast (default "lnIn"): bus commands in both directions
//   - echo (default "lnEcho"): publish confirmations of commands a node put on its bus
//   - ping (default "lnPing"): heartbeats used for discovery
//
// # Architecture
//
//	bus driver ──Enqueue/Forward──► Queue ──TryDrainOne──► Transport ──► broker
//	bus driver ◄──────Handler────── Router ◄────Pump────── Transport ◄── broker
//
// A single host goroutine calls Engine.Tick repeatedly. Each tick does a
// bounded amount of work: one connection check (with a throttled reconnect),
// one transport pump, one queue drain attempt and one heartbeat check.
// Nothing inside a tick sleeps or waits; blocking is left to the Transport,
// which must bound its own latency.
//
// # Echo Detection
//
// Every node stamps outbound messages with its resolved name in the "From"
// field and with the microsecond timestamp at which the message entered the
// relay ("ReqRecTime"). When a node sees its own name come back on the
// broadcast topic the message is marked FlagEcho and the round trip is
// computed from the carried timestamp. This keeps a node from relaying its
// own traffic back onto the bus forever.
//
// # Thread Safety
//
// Engine, Queue, Lifecycle, HeartbeatScheduler and Router are NOT safe for
// concurrent use. All of them belong to the goroutine that calls Tick;
// producers on other goroutines must hand messages to that goroutine.
//
// # Usage
//
//	engine, err := relay.NewEngine(relay.Options{
//	    Transport: transport,
//	    NodeName:  "IoTT-MQTT",
//	    Handler:   func(msg relay.RelayMessage) { busDriver.Write(msg) },
//	})
//	if err != nil {
//	    return err
//	}
//
//	ticker := time.NewTicker(10 * time.Millisecond)
//	for range ticker.C {
//	    engine.Tick()
//	}
package relay
