// Package influxdb stores relay telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	echo_rtt        node=<self>   rtt_us, rtt_ms
//	peer_heartbeat  node=<peer>   ip, signal, free_mem, uptime_s
//
// Client satisfies relay.TelemetryWriter. Writes go through the library's
// non-blocking WriteAPI, so the relay loop never waits on the network;
// failures surface through SetOnError.
//
// # Usage
//
//	tel, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer tel.Close()
package influxdb
