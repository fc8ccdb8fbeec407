package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lnbridge/internal/relay"
)

// Measurement names.
const (
	MeasurementEchoRTT       = "echo_rtt"
	MeasurementPeerHeartbeat = "peer_heartbeat"
)

// WriteEchoRoundTrip records how long one of this node's messages took to
// come back from the broker.
//
// The node tag is the sender, which for an echo is always this node. The
// value is stored both as whole microseconds and as fractional milliseconds
// so dashboards need no conversion.
func (c *Client) WriteEchoRoundTrip(node string, rtt time.Duration) {
	c.WritePoint(MeasurementEchoRTT,
		map[string]string{"node": node},
		map[string]any{
			"rtt_us": rtt.Microseconds(),
			"rtt_ms": float64(rtt) / float64(time.Millisecond),
		})
}

// WritePeerHeartbeat records a heartbeat received from another node.
// The IP goes in a field, not a tag: DHCP leases would explode series
// cardinality.
func (c *Client) WritePeerHeartbeat(hb relay.HeartbeatMessage) {
	c.WritePoint(MeasurementPeerHeartbeat,
		map[string]string{"node": hb.From},
		map[string]any{
			"ip":       hb.IP,
			"signal":   int64(hb.SigStrength),
			"free_mem": int64(hb.Mem), //nolint:gosec // Free memory fits in int64
			"uptime_s": int64(hb.Uptime),
		})
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, c.clock.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
