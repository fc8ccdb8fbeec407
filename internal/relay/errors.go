package relay

import "errors"

// Domain errors for the relay engine.
// None of them is fatal: callers drop, retry or report and carry on.
var (
	// ErrOverflow is returned when the outbound queue has no free slot.
	ErrOverflow = errors.New("relay: outbound queue full")

	// ErrMalformedEnvelope is returned when inbound text is not a valid JSON object
	// of the expected shape.
	ErrMalformedEnvelope = errors.New("relay: malformed envelope")

	// ErrMissingIdentity is returned when a well-formed envelope has no "From" field.
	ErrMissingIdentity = errors.New("relay: envelope has no sender identity")

	// ErrPublishFailed is returned when the transport rejects a publish.
	// The message stays at the head of the queue and is retried next tick.
	ErrPublishFailed = errors.New("relay: publish failed")

	// ErrConnectFailed is returned when a broker connection attempt fails.
	ErrConnectFailed = errors.New("relay: connect failed")

	// ErrSubscribeFailed is returned when a topic subscription fails after connect.
	ErrSubscribeFailed = errors.New("relay: subscribe failed")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("relay: payload exceeds bus frame limit")

	// ErrInvalidTopic is returned for empty, oversize or wildcard topic names.
	ErrInvalidTopic = errors.New("relay: invalid topic name")

	// ErrInvalidNodeName is returned when the node name is empty or too long.
	ErrInvalidNodeName = errors.New("relay: invalid node name")

	// ErrNoTransport is returned by NewEngine when no transport is supplied.
	ErrNoTransport = errors.New("relay: transport is required")
)
