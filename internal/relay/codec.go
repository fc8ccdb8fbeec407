package relay

import (
	"encoding/json"
	"fmt"
)

// legacyValid is always emitted in the "Valid" field. Receivers ignore it.
const legacyValid = 1

// relayWire is the outbound JSON shape of a relay message.
// Field names are shared with every other node and must not change.
type relayWire struct {
	From        string `json:"From"`
	ReqRecTime  uint32 `json:"ReqRecTime"`
	ReqRespTime uint32 `json:"ReqRespTime"`
	EchoTime    uint32 `json:"EchoTime"`
	ReqID       uint16 `json:"ReqID"`
	ErrorFlags  uint8  `json:"ErrorFlags"`
	Valid       int    `json:"Valid"`
	Data        []int  `json:"Data"`
}

// inboundWire is the permissive inbound shape. Pointers and nil slices tell
// an absent field apart from a zero one.
type inboundWire struct {
	From        *string `json:"From"`
	ReqRecTime  uint32  `json:"ReqRecTime"`
	ReqRespTime uint32  `json:"ReqRespTime"`
	EchoTime    uint32  `json:"EchoTime"`
	ReqID       uint16  `json:"ReqID"`
	Data        []int   `json:"Data"`
}

// heartbeatWire is the JSON shape of a heartbeat.
type heartbeatWire struct {
	From        string `json:"From"`
	IP          string `json:"IP"`
	SigStrength int    `json:"SigStrength"`
	Mem         uint64 `json:"Mem"`
	Uptime      uint32 `json:"Uptime"`
}

// Envelope is the result of decoding text received on a relay topic.
type Envelope struct {
	// From is the sender's node name. Always set on success.
	From string

	// HasPayload is false for well-formed envelopes without a "Data" field
	// (heartbeats, pings). Message is zero in that case.
	HasPayload bool

	// Message is the decoded relay message, with From filled in.
	Message RelayMessage
}

// EncodeRelay serialises msg as sent by node from.
//
// Flags are emitted as "ErrorFlags" for older receivers; DecodeRelay ignores
// them and the receiving router derives FlagEcho itself.
func EncodeRelay(from string, msg RelayMessage) ([]byte, error) {
	if err := validatePayload(msg.Payload); err != nil {
		return nil, err
	}

	// Data must always be an array, never null, or receivers treat the
	// message as a ping.
	data := make([]int, len(msg.Payload))
	for i, b := range msg.Payload {
		data[i] = int(b)
	}

	return json.Marshal(relayWire{
		From:        from,
		ReqRecTime:  uint32(msg.ReceivedAt),
		ReqRespTime: uint32(msg.RespondedAt),
		EchoTime:    uint32(msg.EchoRoundTrip),
		ReqID:       msg.RequestID,
		ErrorFlags:  uint8(msg.Flags),
		Valid:       legacyValid,
		Data:        data,
	})
}

// DecodeRelay parses text received on the broadcast topic.
//
// Returns:
//   - Envelope with HasPayload=false when the envelope is valid but carries no "Data"
//   - ErrMalformedEnvelope when text is not a JSON object of the expected shape
//     or a data element is outside 0..255
//   - ErrMissingIdentity when "From" is absent
func DecodeRelay(text []byte) (Envelope, error) {
	var w inboundWire
	if err := json.Unmarshal(text, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if w.From == nil {
		return Envelope{}, ErrMissingIdentity
	}

	env := Envelope{From: *w.From}
	if w.Data == nil {
		return env, nil
	}

	if len(w.Data) > MaxPayloadSize {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope,
			fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(w.Data), MaxPayloadSize))
	}
	payload := make([]byte, len(w.Data))
	for i, v := range w.Data {
		if v < 0 || v > 0xFF {
			return Envelope{}, fmt.Errorf("%w: data[%d]=%d is not a byte", ErrMalformedEnvelope, i, v)
		}
		payload[i] = byte(v)
	}

	env.HasPayload = true
	env.Message = RelayMessage{
		From:          env.From,
		Payload:       payload,
		RequestID:     w.ReqID,
		ReceivedAt:    Micros(w.ReqRecTime),
		RespondedAt:   Micros(w.ReqRespTime),
		EchoRoundTrip: Micros(w.EchoTime),
	}
	return env, nil
}

// EncodeHeartbeat serialises a heartbeat.
func EncodeHeartbeat(hb HeartbeatMessage) ([]byte, error) {
	return json.Marshal(heartbeatWire(hb))
}

// DecodeHeartbeat parses text received on the ping topic.
// Missing numeric fields decode as zero; "From" is required.
func DecodeHeartbeat(text []byte) (HeartbeatMessage, error) {
	var w struct {
		From        *string `json:"From"`
		IP          string  `json:"IP"`
		SigStrength int     `json:"SigStrength"`
		Mem         uint64  `json:"Mem"`
		Uptime      uint32  `json:"Uptime"`
	}
	if err := json.Unmarshal(text, &w); err != nil {
		return HeartbeatMessage{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if w.From == nil {
		return HeartbeatMessage{}, ErrMissingIdentity
	}
	return HeartbeatMessage{
		From:        *w.From,
		IP:          w.IP,
		SigStrength: w.SigStrength,
		Mem:         w.Mem,
		Uptime:      w.Uptime,
	}, nil
}
