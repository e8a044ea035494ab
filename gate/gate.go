// Package gate implements a one-shot handoff between a producer that may set a value at any time
// and a single consumer that blocks until the value exists, doing periodic work while it waits.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// DefaultPollInterval is used when WaitForValue is given a non-positive interval.
const DefaultPollInterval = time.Second

var (
	// ErrAlreadySet is returned by Set under the Reject policy when a value is pending.
	ErrAlreadySet = errors.New("gate value already set")
	// ErrConsumed is returned once the value has been read. A gate is used exactly once.
	ErrConsumed = errors.New("gate value already consumed")
)

// State is the lifecycle of a Gate. It only moves forward.
type State int32

const (
	// Empty means no value has been set.
	Empty State = iota
	// Filled means a value is pending and has not been read.
	Filled
	// Consumed means the value was handed to the waiter. Terminal.
	Consumed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Consumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states render by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Empty, Filled, Consumed} {
		if string(text) == candidate.String() {
			*s = candidate
			return nil
		}
	}
	return errors.Errorf("unknown gate state %q", string(text))
}

// Option configures a Gate.
type Option func(*options)

type options struct {
	policy Policy
	clock  clock.Clock
}

// WithPolicy sets the behavior of a second Set. The default is Overwrite.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock replaces the wall clock used for poll timeouts.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// Gate holds at most one pending value of type T. Any number of goroutines may Set; one goroutine
// waits with WaitForValue.
type Gate[T any] struct {
	mu      sync.Mutex
	state   State
	pending T
	// signal has capacity one. Set never blocks on it and a waiter that misses a send still sees
	// the value on its next check under mu.
	signal chan struct{}

	policy Policy
	clock  clock.Clock

	overwritten atomic.Int64
	// waits counts timed waits begun. Tests use it to know when the waiter is parked.
	waits atomic.Int64
}

// New returns an empty gate.
func New[T any](opts ...Option) *Gate[T] {
	o := options{policy: Overwrite, clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Gate[T]{
		signal: make(chan struct{}, 1),
		policy: o.policy,
		clock:  o.clock,
	}
}

// Set stores v and wakes the waiter, if any.
func (g *Gate[T]) Set(v T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case Consumed:
		return ErrConsumed
	case Filled:
		if g.policy == Reject {
			return ErrAlreadySet
		}
		g.overwritten.Inc()
	case Empty:
	}

	g.pending = v
	g.state = Filled
	select {
	case g.signal <- struct{}{}:
	default:
	}
	return nil
}

// WaitForValue blocks until a value is set and returns it, marking the gate consumed. Each poll
// interval that elapses with no value calls onTick once, without the gate's lock held. onTick may
// call Set but must not call WaitForValue.
//
// The wait ends early only when ctx is done, in which case ctx.Err() is returned. Calling
// WaitForValue after the value was consumed returns ErrConsumed.
func (g *Gate[T]) WaitForValue(ctx context.Context, pollInterval time.Duration, onTick func()) (T, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	var zero T

	for {
		g.mu.Lock()
		switch g.state {
		case Filled:
			v := g.pending
			g.pending = zero
			g.state = Consumed
			g.mu.Unlock()
			return v, nil
		case Consumed:
			g.mu.Unlock()
			return zero, ErrConsumed
		case Empty:
		}
		timer := g.clock.Timer(pollInterval)
		g.waits.Inc()
		g.mu.Unlock()

		select {
		case <-g.signal:
			timer.Stop()
		case <-timer.C:
			// A Set racing the timeout wins; the tick only fires for a genuinely empty interval.
			if g.State() == Empty && onTick != nil {
				onTick()
			}
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}

// State reports the gate's current state.
func (g *Gate[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Overwritten counts values replaced by a later Set before being read.
func (g *Gate[T]) Overwritten() int64 {
	return g.overwritten.Load()
}

func (g *Gate[T]) waitCount() int64 {
	return g.waits.Load()
}
