package consumers

import (
	"sort"

	"github.com/segmentio/kafka-go"
)

// offsetTracker records fetched and settled offsets per partition so only a
// contiguous settled prefix is ever committed. It is not safe for concurrent
// use; the consumer serializes access.
type offsetTracker struct {
	partitions map[int]*partitionState
}

type partitionState struct {
	inFlight []int64 // fetch order, ascending
	settled  map[int64]kafka.Message
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionState)}
}

func (t *offsetTracker) track(msg kafka.Message) {
	p, ok := t.partitions[msg.Partition]
	if !ok {
		p = &partitionState{settled: make(map[int64]kafka.Message)}
		t.partitions[msg.Partition] = p
	}
	p.inFlight = append(p.inFlight, msg.Offset)
	// offsets from a partition arrive in order, but keep the invariant if a
	// rebalance hands the partition back at an earlier position
	if n := len(p.inFlight); n > 1 && p.inFlight[n-2] > msg.Offset {
		sort.Slice(p.inFlight, func(i, j int) bool { return p.inFlight[i] < p.inFlight[j] })
	}
}

// settle marks msg done and returns the highest message that may now be
// committed for its partition, if the settled prefix advanced.
func (t *offsetTracker) settle(msg kafka.Message) (kafka.Message, bool) {
	p, ok := t.partitions[msg.Partition]
	if !ok {
		return kafka.Message{}, false
	}
	p.settled[msg.Offset] = msg

	var (
		commit   kafka.Message
		advanced bool
	)
	for len(p.inFlight) > 0 {
		head := p.inFlight[0]
		settledMsg, done := p.settled[head]
		if !done {
			break
		}
		commit, advanced = settledMsg, true
		delete(p.settled, head)
		p.inFlight = p.inFlight[1:]
	}
	return commit, advanced
}

// pending reports how many tracked offsets are not yet committed
func (t *offsetTracker) pending() int {
	n := 0
	for _, p := range t.partitions {
		n += len(p.inFlight)
	}
	return n
}
