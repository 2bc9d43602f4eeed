package rotation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// FreshnessTracker holds the authoritative last-shown time per partner for
// this process. Concurrent placements that show the same partner race
// through a compare-and-swap, so the stored time only moves forward.
type FreshnessTracker struct {
	shown sync.Map // partner id -> *atomic.Int64 (unix nanos)
}

// NewFreshnessTracker returns an empty tracker.
func NewFreshnessTracker() *FreshnessTracker {
	return &FreshnessTracker{}
}

func (f *FreshnessTracker) slot(id string) *atomic.Int64 {
	if v, ok := f.shown.Load(id); ok {
		return v.(*atomic.Int64)
	}
	v, _ := f.shown.LoadOrStore(id, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// MarkShown records that partner id was shown at t. It reports false when a
// later time was already recorded.
func (f *FreshnessTracker) MarkShown(id string, t time.Time) bool {
	ns := t.UnixNano()
	slot := f.slot(id)
	for {
		cur := slot.Load()
		if cur >= ns {
			return false
		}
		if slot.CompareAndSwap(cur, ns) {
			return true
		}
	}
}

// LastShown returns the tracked last-shown time for id.
func (f *FreshnessTracker) LastShown(id string) (time.Time, bool) {
	v, ok := f.shown.Load(id)
	if !ok {
		return time.Time{}, false
	}
	ns := v.(*atomic.Int64).Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns).UTC(), true
}

// Overlay returns copies of partners whose LastShownAt is the later of the
// stored value and the tracked value. The input slice is not modified.
func (f *FreshnessTracker) Overlay(partners []model.PartnerAdConfig) []model.PartnerAdConfig {
	out := make([]model.PartnerAdConfig, len(partners))
	copy(out, partners)
	for i := range out {
		t, ok := f.LastShown(out[i].PartnerID)
		if !ok {
			continue
		}
		if out[i].LastShownAt == nil || t.After(*out[i].LastShownAt) {
			out[i].LastShownAt = &t
		}
	}
	return out
}
