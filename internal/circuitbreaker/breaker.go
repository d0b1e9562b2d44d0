// Package circuitbreaker guards calls to an external dependency with
// closed → open → half-open state transitions.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/avendale/tutorhive/internal/metrics"
)

// State represents the circuit state.
type State int

const (
	StateClosed   State = iota // Normal: requests flow through
	StateOpen                  // Tripped: requests are rejected
	StateHalfOpen              // Probing: one request allowed to test recovery
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker protects a single external dependency. It trips open after
// threshold consecutive failures and stays open for openFor before
// allowing one probe request through.
type Breaker struct {
	name    string
	mu      sync.Mutex
	state   State
	fails   int
	tripped time.Time

	threshold int
	openFor   time.Duration
	now       func() time.Time
}

// New creates a breaker named for the dependency it guards.
func New(name string, threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		openFor:   openFor,
		now:       time.Now,
	}
}

// Allow reports whether a request should be attempted. When the circuit
// is open and openFor has elapsed, it moves to half-open and admits one
// probe; further requests are rejected until the probe completes.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.tripped) >= b.openFor {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.fails = 0
}

// RecordFailure counts a failure. A failed probe reopens the circuit;
// reaching the threshold while closed trips it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fails++
	b.tripped = b.now()

	switch {
	case b.state == StateHalfOpen:
		b.transition(StateOpen)
	case b.state == StateClosed && b.fails >= b.threshold:
		b.transition(StateOpen)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition changes state. Caller must hold b.mu.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	metrics.CircuitBreakerTransitions.WithLabelValues(b.name, b.state.String(), to.String()).Inc()
	b.state = to
}
