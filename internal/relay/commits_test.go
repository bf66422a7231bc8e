package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/thumbrelay/pkg/kafka"
)

func TestCommitTracker_InOrder(t *testing.T) {
	c := newCommitTracker()
	for i := int64(0); i < 3; i++ {
		p := c.track(kafka.Delivery{Offset: i})
		d, ok := c.complete(p)
		require.True(t, ok)
		assert.Equal(t, i, d.Offset)
	}
	assert.Zero(t, c.inFlight())
}

func TestCommitTracker_OutOfOrderWaitsForPrefix(t *testing.T) {
	c := newCommitTracker()
	p0 := c.track(kafka.Delivery{Offset: 10})
	p1 := c.track(kafka.Delivery{Offset: 11})
	p2 := c.track(kafka.Delivery{Offset: 12})
	p3 := c.track(kafka.Delivery{Offset: 13})

	_, ok := c.complete(p2)
	assert.False(t, ok)
	_, ok = c.complete(p1)
	assert.False(t, ok)
	assert.Equal(t, 4, c.inFlight())

	d, ok := c.complete(p0)
	require.True(t, ok)
	assert.Equal(t, int64(12), d.Offset)
	assert.Equal(t, 1, c.inFlight())

	d, ok = c.complete(p3)
	require.True(t, ok)
	assert.Equal(t, int64(13), d.Offset)
	assert.Zero(t, c.inFlight())
}

func TestCommitTracker_PartitionsAreIndependent(t *testing.T) {
	c := newCommitTracker()
	a0 := c.track(kafka.Delivery{Partition: 0, Offset: 1})
	b0 := c.track(kafka.Delivery{Partition: 1, Offset: 7})
	a1 := c.track(kafka.Delivery{Partition: 0, Offset: 2})

	d, ok := c.complete(b0)
	require.True(t, ok)
	assert.Equal(t, 1, d.Partition)
	assert.Equal(t, int64(7), d.Offset)

	_, ok = c.complete(a1)
	assert.False(t, ok, "partition 0 is still waiting on offset 1")

	d, ok = c.complete(a0)
	require.True(t, ok)
	assert.Equal(t, 0, d.Partition)
	assert.Equal(t, int64(2), d.Offset)
}
