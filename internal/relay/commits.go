package relay

import (
	"sync"

	"github.com/your-org/thumbrelay/pkg/kafka"
)

// commitTracker orders offset commits per partition. A delivery becomes
// committable only when it and every delivery fetched before it from the
// same partition have finished.
type commitTracker struct {
	mu         sync.Mutex
	partitions map[int][]*pendingOffset
}

type pendingOffset struct {
	d    kafka.Delivery
	done bool
}

func newCommitTracker() *commitTracker {
	return &commitTracker{partitions: make(map[int][]*pendingOffset)}
}

// track registers d in fetch order.
func (c *commitTracker) track(d kafka.Delivery) *pendingOffset {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &pendingOffset{d: d}
	c.partitions[d.Partition] = append(c.partitions[d.Partition], p)
	return p
}

// complete marks p finished and returns the furthest delivery of its
// partition whose predecessors are all finished. ok is false while an
// earlier delivery is still in flight.
func (c *commitTracker) complete(p *pendingOffset) (kafka.Delivery, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.done = true

	queue := c.partitions[p.d.Partition]
	n := 0
	for n < len(queue) && queue[n].done {
		n++
	}
	if n == 0 {
		return kafka.Delivery{}, false
	}
	last := queue[n-1].d
	if n == len(queue) {
		delete(c.partitions, p.d.Partition)
	} else {
		c.partitions[p.d.Partition] = queue[n:]
	}
	return last, true
}

// inFlight is the number of tracked deliveries not yet released.
func (c *commitTracker) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.partitions {
		n += len(q)
	}
	return n
}
