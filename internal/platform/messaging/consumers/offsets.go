package consumers

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker keeps, per partition, the fetched offsets in fetch order and
// releases a commit only for the acknowledged prefix of that order.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	order []int64
	seen  map[int64]struct{}
	done  map[int64]kafka.Message
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

func (t *offsetTracker) partition(p int) *partitionOffsets {
	po, ok := t.partitions[p]
	if !ok {
		po = &partitionOffsets{
			seen: make(map[int64]struct{}),
			done: make(map[int64]kafka.Message),
		}
		t.partitions[p] = po
	}
	return po
}

// track registers a fetched message. Returns false if the offset is already in flight.
func (t *offsetTracker) track(msg kafka.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	po := t.partition(msg.Partition)
	if _, ok := po.seen[msg.Offset]; ok {
		return false
	}
	po.seen[msg.Offset] = struct{}{}
	po.order = append(po.order, msg.Offset)
	return true
}

// ack marks msg done and, when this extends the contiguous acknowledged prefix,
// calls commit with the last message of that prefix while holding the lock so
// commits for a partition never go backwards.
func (t *offsetTracker) ack(msg kafka.Message, commit func(kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	po := t.partition(msg.Partition)
	if _, ok := po.seen[msg.Offset]; !ok {
		return nil
	}
	po.done[msg.Offset] = msg

	var (
		last    kafka.Message
		advance bool
	)
	for len(po.order) > 0 {
		head := po.order[0]
		m, ok := po.done[head]
		if !ok {
			break
		}
		last, advance = m, true
		po.order = po.order[1:]
		delete(po.done, head)
		delete(po.seen, head)
	}
	if !advance {
		return nil
	}
	return commit(last)
}

// pending reports how many fetched offsets of partition p are not yet committable
func (t *offsetTracker) pending(p int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if po, ok := t.partitions[p]; ok {
		return len(po.order)
	}
	return 0
}
