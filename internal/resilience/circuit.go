// Package resilience provides circuit breaker and retry patterns for external service calls.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state; requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures; requests are skipped.
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	// the circuit. Default: 3.
	FailureThreshold int

	// ResetTimeout is how long after the last failure the circuit stays
	// open. Default: 60s.
	ResetTimeout time.Duration

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the provider gate defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreaker tracks failures for a single provider. Counters are atomic;
// concurrent callers racing on the open flag may briefly disagree, which is
// acceptable for a degradation signal.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	failures    atomic.Int64
	lastFailure atomic.Int64 // unix nanos
	open        atomic.Bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:    name,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Name returns the provider this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may be attempted. An open circuit whose reset
// window has elapsed since the last failure is closed with its failure count
// cleared, and the call is allowed. Otherwise an open circuit returns
// ErrCircuitOpen and no call should be made.
func (cb *CircuitBreaker) Allow() error {
	if !cb.open.Load() {
		return nil
	}
	last := time.Unix(0, cb.lastFailure.Load())
	if cb.nowFunc().Sub(last) > cb.cfg.ResetTimeout {
		if cb.open.CompareAndSwap(true, false) {
			cb.failures.Store(0)
			cb.notify(CircuitOpen, CircuitClosed)
		}
		return nil
	}
	return ErrCircuitOpen
}

// Ready reports whether Allow would permit a call, without changing state.
func (cb *CircuitBreaker) Ready() bool {
	if !cb.open.Load() {
		return true
	}
	last := time.Unix(0, cb.lastFailure.Load())
	return cb.nowFunc().Sub(last) > cb.cfg.ResetTimeout
}

// RecordSuccess clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	if cb.open.CompareAndSwap(true, false) {
		cb.notify(CircuitOpen, CircuitClosed)
	}
}

// RecordFailure counts a failed call and opens the circuit once the
// threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.lastFailure.Store(cb.nowFunc().UnixNano())
	n := cb.failures.Add(1)
	if n >= int64(cb.cfg.FailureThreshold) && cb.open.CompareAndSwap(false, true) {
		cb.notify(CircuitClosed, CircuitOpen)
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen without
// calling fn if the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.Allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

func (cb *CircuitBreaker) record(err error) {
	if err != nil {
		cb.RecordFailure()
		return
	}
	cb.RecordSuccess()
}

// State returns the current circuit state without mutating it.
func (cb *CircuitBreaker) State() CircuitState {
	if cb.open.Load() {
		return CircuitOpen
	}
	return CircuitClosed
}

// Reset forces the circuit back to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.failures.Store(0)
	if cb.open.CompareAndSwap(true, false) {
		cb.notify(CircuitOpen, CircuitClosed)
	}
}

// Status returns a point-in-time snapshot for health reporting.
func (cb *CircuitBreaker) Status() BreakerStatus {
	st := BreakerStatus{
		Name:     cb.name,
		State:    cb.State().String(),
		Open:     cb.open.Load(),
		Failures: cb.failures.Load(),
	}
	if ns := cb.lastFailure.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		st.LastFailureAt = &t
	}
	return st
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// BreakerStatus is the serializable view of one breaker.
type BreakerStatus struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	Open          bool       `json:"open"`
	Failures      int64      `json:"failures"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

// ServiceBreakers manages circuit breakers for multiple providers.
type ServiceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
	nowFunc  func() time.Time
}

// NewServiceBreakers creates a registry of per-provider circuit breakers.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
		nowFunc:  time.Now,
	}
}

// WithNow sets the clock used by breakers created from now on.
func (sb *ServiceBreakers) WithNow(now func() time.Time) *ServiceBreakers {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.nowFunc = now
	for _, cb := range sb.breakers {
		cb.nowFunc = now
	}
	return sb
}

// Get returns the circuit breaker for the named provider, creating one if needed.
func (sb *ServiceBreakers) Get(name string) *CircuitBreaker {
	sb.mu.RLock()
	cb, ok := sb.breakers[name]
	sb.mu.RUnlock()
	if ok {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	// Double-check after acquiring write lock.
	if cb, ok = sb.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, sb.cfg)
	cb.nowFunc = sb.nowFunc
	sb.breakers[name] = cb
	return cb
}

// States returns a snapshot of all circuit breaker states.
func (sb *ServiceBreakers) States() map[string]BreakerStatus {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	states := make(map[string]BreakerStatus, len(sb.breakers))
	for name, cb := range sb.breakers {
		states[name] = cb.Status()
	}
	return states
}
