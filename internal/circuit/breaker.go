// Package circuit stops calling a storage backend that keeps failing. A
// Breaker trips after a run of consecutive backend faults, rejects calls
// while open and lets a probe through after a cool-down.
package circuit

import (
	"context"
	stderr "errors"
	"sync"
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - circuit breaker is closed, requests pass through
	StateClosed State = iota
	// StateOpen - circuit breaker is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit breaker allows limited requests to test if service recovered
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	// Threshold is the number of consecutive backend faults that trips the breaker
	Threshold uint32 `yaml:"threshold"`

	// Maximum number of requests allowed to pass through when state is half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Period of the open state after which the breaker enters half-open state
	Timeout time.Duration `yaml:"timeout"`

	// Function called when state changes
	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// IsFault decides whether an error counts against the backend. Errors
	// that are not faults, such as a missing object, leave the counts alone.
	IsFault func(err error) bool `yaml:"-"`

	Now func() time.Time `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker creates a breaker in the closed state
func NewBreaker(name string, config Config) *Breaker {
	if config.Threshold == 0 {
		config.Threshold = 5
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.IsFault == nil {
		config.IsFault = IsBackendFault
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Breaker{name: name, config: config, state: StateClosed}
}

// IsBackendFault reports whether err says the backend itself is unhealthy:
// connection problems, throttling and service errors. Request errors such as
// a missing object or denied access do not count, nor does cancellation.
func IsBackendFault(err error) bool {
	if err == nil || canceled(err) {
		return false
	}
	var re *errors.RetrievalError
	if !stderr.As(err, &re) {
		return true
	}
	return re.Code == errors.ErrCodeBackendUnavailable || errors.IsRetryableByDefault(re.Code)
}

func canceled(err error) bool {
	return stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded)
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterRequest(err)
	return err
}

// beforeRequest is called before executing the request
func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState(b.config.Now())

	if state == StateOpen {
		return b.rejected("circuit breaker is open")
	}
	if state == StateHalfOpen && b.counts.Requests >= b.config.MaxRequests {
		return b.rejected("too many requests in half-open state")
	}

	b.counts.Requests++
	return nil
}

// afterRequest is called after executing the request
func (b *Breaker) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.config.Now()
	state := b.currentState(now)

	// a canceled call says nothing about the backend; free its probe slot
	if canceled(err) {
		if state == StateHalfOpen && b.counts.Requests > 0 {
			b.counts.Requests--
		}
		return
	}

	if !b.config.IsFault(err) {
		b.counts.ConsecutiveFailures = 0
		b.counts.ConsecutiveSuccesses++
		if state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.config.Threshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// currentState moves an expired open breaker to half-open
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && !now.Before(b.expiry) {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

// setState changes the state of the circuit breaker
func (b *Breaker) setState(state State, now time.Time) {
	prev := b.state
	if prev == state {
		return
	}

	b.state = state
	b.counts = Counts{}
	b.expiry = time.Time{}
	if state == StateOpen {
		b.expiry = now.Add(b.config.Timeout)
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// rejected builds the error returned while the breaker refuses calls. It is
// not retryable, so a retry loop gives up at once instead of waiting out
// the cool-down.
func (b *Breaker) rejected(msg string) error {
	return errors.NewError(errors.ErrCodeBackendUnavailable, msg).
		WithComponent("circuit").
		WithContext("breaker", b.name).
		WithContext("retry_after", b.expiry.Format(time.RFC3339))
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentState(b.config.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset closes the breaker and clears its counts
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed, b.config.Now())
	b.counts = Counts{}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}
