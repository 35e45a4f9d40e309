// Package circuitbreaker guards calls to upstream scoring services with a
// per-upstream closed → open → half-open circuit.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrOpen is returned by Do when the circuit rejects the call outright.
var ErrOpen = errors.New("circuit open")

// State represents the circuit state for one upstream.
type State int

const (
	StateClosed   State = iota // calls flow through
	StateOpen                  // calls are rejected
	StateHalfOpen              // one probe call in flight
)

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

var transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fraudscore",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit state transitions by upstream, from-state, and to-state.",
}, []string{"upstream", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(transitionsTotal)
}

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Breaker tracks consecutive failures per upstream and trips open once they
// reach the threshold. After cooldown the circuit moves to half-open and
// lets a single probe through.
type Breaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
}

func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call to upstream may proceed, moving an expired
// open circuit to half-open as a side effect.
func (b *Breaker) Allow(upstream string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[upstream]
	if !ok {
		return true
	}
	switch c.state {
	case StateOpen:
		if time.Since(c.lastFailure) >= b.cooldown {
			b.transition(c, upstream, StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure count and closes a half-open circuit.
func (b *Breaker) RecordSuccess(upstream string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[upstream]
	if !ok {
		return
	}
	if c.state == StateHalfOpen {
		b.transition(c, upstream, StateClosed)
	}
	c.failures = 0
}

// RecordFailure counts a failed call, tripping the circuit at the threshold
// and reopening immediately when a half-open probe fails.
func (b *Breaker) RecordFailure(upstream string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[upstream]
	if !ok {
		c = &circuit{}
		b.circuits[upstream] = c
	}
	c.failures++
	c.lastFailure = time.Now()

	if c.state == StateHalfOpen {
		b.transition(c, upstream, StateOpen)
		return
	}
	if c.state == StateClosed && c.failures >= b.threshold {
		b.transition(c, upstream, StateOpen)
	}
}

// Do runs fn under the circuit for upstream, recording the outcome.
// It returns ErrOpen without calling fn when the circuit is open.
func (b *Breaker) Do(upstream string, fn func() error) error {
	if !b.Allow(upstream) {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure(upstream)
		return err
	}
	b.RecordSuccess(upstream)
	return nil
}

// State returns the circuit state for upstream, StateClosed when untracked.
func (b *Breaker) State(upstream string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[upstream]
	if !ok {
		return StateClosed
	}
	return c.state
}

// caller holds b.mu
func (b *Breaker) transition(c *circuit, upstream string, to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	transitionsTotal.WithLabelValues(upstream, from.String(), to.String()).Inc()
}
