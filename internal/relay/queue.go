package relay

import "fmt"

// DefaultQueueSize is the default number of ring slots. One slot is always
// kept free, so the queue holds at most DefaultQueueSize-1 pending messages.
const DefaultQueueSize = 50

// minQueueSize is the smallest ring that can hold a message.
const minQueueSize = 2

// DrainResult reports the outcome of Queue.TryDrainOne.
type DrainResult int

const (
	// DrainEmpty means there was nothing to publish.
	DrainEmpty DrainResult = iota

	// Drained means the head message was published and removed.
	Drained

	// DrainPublishFailed means the publish failed and the head message stays queued.
	DrainPublishFailed
)

// String returns a short name for logs.
func (r DrainResult) String() string {
	switch r {
	case DrainEmpty:
		return "empty"
	case Drained:
		return "drained"
	case DrainPublishFailed:
		return "publish_failed"
	default:
		return fmt.Sprintf("DrainResult(%d)", int(r))
	}
}

// Queue is the fixed-size ring of outbound relay messages.
//
// The write cursor points at the last written slot and the read cursor at the
// last drained slot. The queue is empty when they are equal and full when
// advancing the write cursor would land on the read cursor. Full queues reject
// writes instead of overwriting unread entries.
type Queue struct {
	slots []RelayMessage
	rd    int
	wr    int
}

// NewQueue creates a ring with size slots (size-1 usable).
// Sizes below 2 fall back to DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size < minQueueSize {
		size = DefaultQueueSize
	}
	return &Queue{slots: make([]RelayMessage, size)}
}

// Enqueue appends msg behind all pending messages.
// Returns ErrOverflow, leaving the queue untouched, when no slot is free.
func (q *Queue) Enqueue(msg RelayMessage) error {
	if err := validatePayload(msg.Payload); err != nil {
		return err
	}

	next := q.advance(q.wr)
	if next == q.rd {
		return fmt.Errorf("%w: %d messages pending", ErrOverflow, q.Len())
	}

	q.slots[next] = msg.clone()
	q.wr = next
	return nil
}

// TryDrainOne offers the oldest pending message to publish.
//
// On success the message is removed. On failure it stays at the head so the
// next call retries the same message; nothing is skipped or reordered.
// The publish error is returned alongside DrainPublishFailed.
func (q *Queue) TryDrainOne(publish func(RelayMessage) error) (DrainResult, error) {
	if q.Empty() {
		return DrainEmpty, nil
	}

	next := q.advance(q.rd)
	if err := publish(q.slots[next].clone()); err != nil {
		return DrainPublishFailed, err
	}

	q.slots[next] = RelayMessage{}
	q.rd = next
	return Drained, nil
}

// Empty reports whether no message is pending.
func (q *Queue) Empty() bool {
	return q.rd == q.wr
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	return (q.wr - q.rd + len(q.slots)) % len(q.slots)
}

// Cap returns the maximum number of pending messages.
func (q *Queue) Cap() int {
	return len(q.slots) - 1
}

func (q *Queue) advance(i int) int {
	return (i + 1) % len(q.slots)
}
