package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the breaker's time source deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(threshold, timeout)
	cb.now = clock.Now
	return cb, clock
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(boom)
		assert.Equal(t, StateClosed, cb.State())
	}

	require.NoError(t, cb.Allow())
	cb.Record(boom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	boom := errors.New("boom")

	cb.Record(boom)
	cb.Record(boom)
	cb.Record(nil)
	cb.Record(boom)
	cb.Record(boom)

	// The success cleared the streak, so five interleaved outcomes never
	// reach three consecutive failures.
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.Record(errors.New("boom"))
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	clock.Advance(31 * time.Second)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.Record(errors.New("boom"))
	clock.Advance(2 * time.Minute)

	require.NoError(t, cb.Allow())
	// The trial is in flight; concurrent callers are shed until it resolves.
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.Record(errors.New("boom"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.Allow())

	cb.Record(errors.New("still broken"))
	assert.Equal(t, StateOpen, cb.State())

	// The recovery window restarts from the reopen, not the original trip.
	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
	clock.Advance(2 * time.Second)
	assert.NoError(t, cb.Allow())
}

func TestBreaker_AbandonedTrialFreesSlot(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.Record(errors.New("boom"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.Allow())

	// The trial never resolved; the slot must not stay claimed forever.
	cb.Abandon()
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Allow())

	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
