// Package sampler implements weighted random selection without replacement.
// It is the single roulette-wheel implementation shared by partner rotation
// and the distribution harness.
package sampler

import (
	"math/rand/v2"
	"sync"
)

// Sampler owns a random source. It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a sampler seeded from the runtime entropy source.
func New() *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a deterministic sampler for tests and reproducible QA runs.
func NewSeeded(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Sampler) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Sampler) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Select draws min(count, len(items)) distinct items with probability
// proportional to weightOf. Each round draws r in [0, total) over the
// remaining pool and takes the first item whose cumulative weight reaches r;
// that item leaves the pool. Non-positive weights never win a draw while any
// positive weight remains; a pool of only zero weights is drawn uniformly.
// Items keep their draw order in the result.
func Select[T any](s *Sampler, items []T, weightOf func(T) float64, count int) []T {
	if count <= 0 || len(items) == 0 {
		return nil
	}
	if count > len(items) {
		count = len(items)
	}

	pool := make([]int, len(items))
	weights := make([]float64, len(items))
	for i, it := range items {
		pool[i] = i
		if w := weightOf(it); w > 0 {
			weights[i] = w
		}
	}

	out := make([]T, 0, count)
	for len(out) < count && len(pool) > 0 {
		pos := draw(s, pool, weights)
		out = append(out, items[pool[pos]])
		pool = append(pool[:pos], pool[pos+1:]...)
	}
	return out
}

// draw returns the position in pool of the winning item.
func draw(s *Sampler, pool []int, weights []float64) int {
	var total float64
	for _, idx := range pool {
		total += weights[idx]
	}
	if total <= 0 {
		return s.intN(len(pool))
	}

	r := s.float64() * total
	var cum float64
	last := -1
	for pos, idx := range pool {
		w := weights[idx]
		if w <= 0 {
			continue
		}
		last = pos
		cum += w
		if cum >= r {
			return pos
		}
	}
	// Rounding can leave cum a hair below r.
	return last
}

// Indices draws count distinct indices from weights. It is Select over
// positions, for callers that tally by index.
func Indices(s *Sampler, weights []float64, count int) []int {
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	return Select(s, idx, func(i int) float64 { return weights[i] }, count)
}
