package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func failing(_ context.Context) error { return errors.New("provider down") }

func succeeding(_ context.Context) error { return nil }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker("anthropic", DefaultCircuitBreakerConfig())
	cb.nowFunc = clock.Now
	return cb
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("anthropic", DefaultCircuitBreakerConfig())
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
	assert.Equal(t, "anthropic", cb.Name())
}

func TestCircuitBreaker_OpensAfterExactlyThreeFailures(t *testing.T) {
	t.Parallel()

	cb := newTestBreaker(newFakeClock())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, failing)
		assert.Equal(t, CircuitClosed, cb.State(), "after %d failures", i+1)
	}

	_ = cb.Execute(ctx, failing)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(_ context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not call the provider")
}

func TestCircuitBreaker_StaysOpenUntilResetWindowElapses(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	require.Equal(t, CircuitOpen, cb.State())

	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// Exactly 60s is not "more than" the window.
	clock.Advance(1 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	clock.Advance(1 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.Status().Failures)
}

func TestCircuitBreaker_SuccessAfterReopenClearsFailures(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	clock.Advance(61 * time.Second)

	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.Status().Failures)

	// A fresh run of failures is needed to reopen.
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	t.Parallel()

	cb := newTestBreaker(newFakeClock())
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, succeeding)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, int64(2), cb.Status().Failures)
}

func TestCircuitBreaker_FailureWhileOpenExtendsWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(40 * time.Second)
	cb.RecordFailure()
	clock.Advance(40 * time.Second)

	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	type transition struct{ from, to CircuitState }
	var got []transition

	cfg := DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(name string, from, to CircuitState) {
		assert.Equal(t, "selfhosted", name)
		got = append(got, transition{from, to})
	}
	cb := NewCircuitBreaker("selfhosted", cfg)
	cb.nowFunc = clock.Now

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.Allow())

	assert.Equal(t, []transition{
		{CircuitClosed, CircuitOpen},
		{CircuitOpen, CircuitClosed},
	}, got)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := newTestBreaker(newFakeClock())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), succeeding))
}

func TestCircuitBreaker_ConfigDefaults(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("x", CircuitBreakerConfig{})
	assert.Equal(t, 3, cb.cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, cb.cfg.ResetTimeout)
}

func TestCircuitBreaker_ConcurrentFailuresAreNotLost(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("anthropic", CircuitBreakerConfig{
		FailureThreshold: 1000,
		ResetTimeout:     time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(200), cb.Status().Failures)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_Status(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := newTestBreaker(clock)

	st := cb.Status()
	assert.Equal(t, "anthropic", st.Name)
	assert.Equal(t, "closed", st.State)
	assert.Nil(t, st.LastFailureAt)

	cb.RecordFailure()
	st = cb.Status()
	assert.Equal(t, int64(1), st.Failures)
	require.NotNil(t, st.LastFailureAt)
	assert.True(t, st.LastFailureAt.Equal(clock.Now()))
}

func TestExecuteVal(t *testing.T) {
	t.Parallel()

	cb := newTestBreaker(newFakeClock())
	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	val, err = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, val)
}

func TestServiceBreakers_Get(t *testing.T) {
	t.Parallel()

	sb := NewServiceBreakers(DefaultCircuitBreakerConfig())
	a1 := sb.Get("anthropic")
	a2 := sb.Get("anthropic")
	s := sb.Get("selfhosted")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, s)
	assert.Equal(t, "selfhosted", s.Name())
}

func TestServiceBreakers_States(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sb := NewServiceBreakers(DefaultCircuitBreakerConfig()).WithNow(clock.Now)

	a := sb.Get("anthropic")
	for i := 0; i < 3; i++ {
		a.RecordFailure()
	}
	_ = sb.Get("selfhosted")

	states := sb.States()
	require.Len(t, states, 2)
	assert.True(t, states["anthropic"].Open)
	assert.Equal(t, "open", states["anthropic"].State)
	assert.False(t, states["selfhosted"].Open)

	clock.Advance(61 * time.Second)
	require.NoError(t, a.Allow())
	assert.False(t, sb.States()["anthropic"].Open)
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestCircuitBreaker_ReadyDoesNotMutate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := newTestBreaker(clock)
	assert.True(t, cb.Ready())

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	assert.False(t, cb.Ready())

	clock.Advance(61 * time.Second)
	assert.True(t, cb.Ready())
	assert.Equal(t, CircuitOpen, cb.State(), "Ready must not close the circuit")
}
