package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	breakerErrorThreshold = 0.5
	breakerMinRequests    = 10
	breakerOpenDuration   = 30 * time.Second
	breakerHalfOpenProbes = 3
)

// BreakerState is the lifecycle state of a CircuitBreaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

var (
	errCircuitOpen   = errors.New("circuit breaker is open")
	errTooManyProbes = errors.New("too many requests in half-open state")
)

// CircuitBreaker guards the quote and gas providers: once their error
// rate crosses the threshold, calls fail fast instead of stacking up
// timeouts inside user turns.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           BreakerState
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: BreakerClosed}
}

// Call runs fn unless the breaker is open. Failures in half-open trip
// it back to open; enough successes close it again.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if time.Since(cb.lastFailureTime) >= breakerOpenDuration {
			cb.state = BreakerHalfOpen
			cb.resetCountersLocked()
		} else {
			cb.mu.Unlock()
			return errCircuitOpen
		}
	}

	if cb.state == BreakerHalfOpen && cb.requests >= breakerHalfOpenProbes {
		cb.mu.Unlock()
		return errTooManyProbes
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	if callErr != nil {
		cb.failures++
		if cb.state == BreakerHalfOpen {
			cb.tripLocked()
		} else if cb.requests >= breakerMinRequests &&
			float64(cb.failures)/float64(cb.requests) >= breakerErrorThreshold {
			cb.tripLocked()
		}
		return callErr
	}

	cb.successes++
	if cb.state == BreakerHalfOpen && cb.successes >= breakerHalfOpenProbes {
		cb.state = BreakerClosed
		cb.resetCountersLocked()
	}

	return nil
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = BreakerOpen
	cb.lastFailureTime = time.Now()
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}
