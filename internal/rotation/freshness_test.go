package rotation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

func TestFreshnessTracker_OnlyMovesForward(t *testing.T) {
	t.Parallel()

	f := NewFreshnessTracker()
	t0 := midMonth

	_, ok := f.LastShown("p1")
	assert.False(t, ok)

	assert.True(t, f.MarkShown("p1", t0))
	assert.False(t, f.MarkShown("p1", t0.Add(-time.Minute)))
	assert.False(t, f.MarkShown("p1", t0))
	assert.True(t, f.MarkShown("p1", t0.Add(time.Second)))

	got, ok := f.LastShown("p1")
	require.True(t, ok)
	assert.True(t, got.Equal(t0.Add(time.Second)))
}

func TestFreshnessTracker_ConcurrentMarksKeepLatest(t *testing.T) {
	t.Parallel()

	f := NewFreshnessTracker()
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.MarkShown("hot", midMonth.Add(time.Duration(i)*time.Millisecond))
		}()
	}
	wg.Wait()

	got, ok := f.LastShown("hot")
	require.True(t, ok)
	assert.True(t, got.Equal(midMonth.Add(499*time.Millisecond)))
}

func TestFreshnessTracker_Overlay(t *testing.T) {
	t.Parallel()

	f := NewFreshnessTracker()
	stored := midMonth.Add(-time.Hour)
	tracked := midMonth.Add(-2 * time.Minute)
	older := midMonth.Add(-3 * time.Hour)

	a := partner("a", model.TierStandard, 500, 0)
	a.LastShownAt = &stored
	b := partner("b", model.TierStandard, 500, 0)
	c := partner("c", model.TierStandard, 500, 0)
	c.LastShownAt = &stored

	f.MarkShown("a", tracked)
	f.MarkShown("b", tracked)
	f.MarkShown("c", older)

	in := []model.PartnerAdConfig{a, b, c}
	out := f.Overlay(in)

	require.Len(t, out, 3)
	assert.True(t, out[0].LastShownAt.Equal(tracked))
	assert.True(t, out[1].LastShownAt.Equal(tracked))
	assert.True(t, out[2].LastShownAt.Equal(stored))
	assert.Nil(t, in[1].LastShownAt, "input must not be modified")
	assert.True(t, in[0].LastShownAt.Equal(stored))
}
