package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, openFor time.Duration) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("stripe", threshold, openFor)
	b.now = clk.now
	return b, clk
}

func TestBreakerAllowsWhenClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "still closed below threshold")

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerProbesAfterOpenDuration(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	require.False(t, b.Allow())

	clk.advance(time.Second)

	assert.True(t, b.Allow(), "one probe admitted")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "no second request while probing")
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clk.advance(time.Second)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clk.advance(time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	assert.True(t, b.Allow(), "counter reset by success")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
