package sampler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candidate struct {
	id     string
	weight float64
}

func weightOf(c candidate) float64 { return c.weight }

func candidates() []candidate {
	return []candidate{
		{"premium", 6.0},
		{"standard", 2.5},
		{"byo", 1.5},
		{"free", 0.2},
		{"assoc", 0.8},
	}
}

func TestSelect_ReturnsMinCountDistinct(t *testing.T) {
	t.Parallel()

	s := NewSeeded(7)
	items := candidates()

	for trial := 0; trial < 500; trial++ {
		for _, k := range []int{1, 3, 5, 8} {
			got := Select(s, items, weightOf, k)
			require.Len(t, got, min(k, len(items)))

			seen := make(map[string]bool, len(got))
			for _, c := range got {
				require.False(t, seen[c.id], "duplicate %s", c.id)
				seen[c.id] = true
			}
		}
	}
}

func TestSelect_EmptyAndZeroCount(t *testing.T) {
	t.Parallel()

	s := NewSeeded(1)
	assert.Empty(t, Select(s, nil, weightOf, 3))
	assert.Empty(t, Select(s, candidates(), weightOf, 0))
	assert.Empty(t, Select(s, candidates(), weightOf, -2))
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	items := candidates()
	before := append([]candidate(nil), items...)
	_ = Select(NewSeeded(3), items, weightOf, 4)
	assert.Equal(t, before, items)
}

func TestSelect_ZeroWeightsOnlyAfterPositive(t *testing.T) {
	t.Parallel()

	items := []candidate{{"zero-a", 0}, {"live", 1}, {"neg", -3}}
	s := NewSeeded(11)
	for i := 0; i < 200; i++ {
		got := Select(s, items, weightOf, 1)
		require.Len(t, got, 1)
		assert.Equal(t, "live", got[0].id)
	}

	all := Select(s, items, weightOf, 3)
	require.Len(t, all, 3)
	assert.Equal(t, "live", all[0].id)
}

func TestSelect_AllZeroWeightsDrawUniformly(t *testing.T) {
	t.Parallel()

	items := []candidate{{"a", 0}, {"b", 0}, {"c", 0}}
	counts := map[string]int{}
	s := NewSeeded(5)
	for i := 0; i < 3000; i++ {
		counts[Select(s, items, weightOf, 1)[0].id]++
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.InDelta(t, 1000, counts[id], 150, id)
	}
}

func TestSelect_ProportionalSingleDraw(t *testing.T) {
	t.Parallel()

	items := []candidate{{"heavy", 3}, {"light", 1}}
	s := NewSeeded(42)
	heavy := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if Select(s, items, weightOf, 1)[0].id == "heavy" {
			heavy++
		}
	}
	assert.InDelta(t, 0.75, float64(heavy)/n, 0.02)
}

func TestSelect_SeededIsReproducible(t *testing.T) {
	t.Parallel()

	a := Select(NewSeeded(99), candidates(), weightOf, 5)
	b := Select(NewSeeded(99), candidates(), weightOf, 5)
	assert.Equal(t, a, b)
}

func TestSelect_ConcurrentUse(t *testing.T) {
	t.Parallel()

	s := New()
	items := candidates()
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.Len(t, Select(s, items, weightOf, 2), 2)
			}
		}()
	}
	wg.Wait()
}

func TestIndices(t *testing.T) {
	t.Parallel()

	got := Indices(NewSeeded(2), []float64{1, 2, 3}, 3)
	assert.ElementsMatch(t, []int{0, 1, 2}, got)
}
