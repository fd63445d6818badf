package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiveClock_TimestampNs(t *testing.T) {
	c := NewLiveClock()
	before := uint64(time.Now().UnixNano())
	got := c.TimestampNs()
	assert.GreaterOrEqual(t, got, before)
}

func TestTestClock(t *testing.T) {
	c := NewTestClock(1_000)
	assert.Equal(t, uint64(1_000), c.TimestampNs())

	assert.Equal(t, uint64(1_000+int64(time.Microsecond)), c.Advance(time.Microsecond))

	c.SetTime(42)
	assert.Equal(t, uint64(42), c.TimestampNs())
}
