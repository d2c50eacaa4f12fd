// Package circuit implements a circuit breaker guarding broker connections.
//
// This is a connection-layer resilience concern, not a producer-core one:
// the core never retries a failed send (an outer group that fails is failed
// exactly once, for every submission in it). A breaker around the transport
// call exists to fail fast against an already-dead broker instead of
// queueing up sends behind a dial timeout on every dispatch cycle.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string        `yaml:"name"`
	FailureThreshold int           `yaml:"failure_threshold"`   // failure count to open; each closed-state success subtracts one
	SuccessThreshold int           `yaml:"success_threshold"`   // half-open successes to close
	Timeout          time.Duration `yaml:"timeout"`             // time spent open before probing
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"` // max calls allowed while half-open
}

// Stats is a point-in-time snapshot of a Breaker's counters.
type Stats struct {
	State       State
	Failures    int64
	Successes   int64
	Requests    int64
	LastFailure time.Time
	LastSuccess time.Time
	NextRetry   time.Time
}

// Breaker implements the circuit breaker pattern around an arbitrary
// fallible operation, typically a broker connection send.
type Breaker struct {
	config BreakerConfig
	logger *logrus.Logger

	mu            sync.RWMutex
	state         State
	failures      int64
	successes     int64
	requests      int64
	lastFailure   time.Time
	lastSuccess   time.Time
	nextRetryTime time.Time

	halfOpenCalls     int
	halfOpenSuccesses int
	halfOpenStartTime time.Time

	onStateChange func(from, to State)
}

// NewBreaker constructs a Breaker, applying defaults to any zero-valued
// threshold the way the teacher's NewBreaker does.
func NewBreaker(config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 10
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Breaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Execute runs fn under breaker protection. The lock is never held across
// fn: phase 1 decides whether the call is admitted, phase 2 runs fn
// unlocked so concurrent callers don't serialize on the breaker, and
// phase 3 records the outcome and re-evaluates the state.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	b.requests++

	if b.state == StateOpen {
		if time.Now().Before(b.nextRetryTime) {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is open", b.config.Name)
		}
		b.setState(StateHalfOpen)
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
		b.halfOpenStartTime = time.Now()
	}

	if b.state == StateHalfOpen {
		if time.Since(b.halfOpenStartTime) > b.config.Timeout*2 {
			b.logger.WithField("breaker", b.config.Name).Warn("circuit breaker half-open timeout, reopening")
			b.trip()
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s half-open timeout", b.config.Name)
		}
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is half-open (max calls reached)", b.config.Name)
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onExecutionFailure()
		if b.shouldTrip() {
			b.trip()
		}
		return err
	}
	b.onExecutionSuccess()
	return nil
}

func (b *Breaker) shouldTrip() bool {
	return b.state == StateClosed && b.failures >= int64(b.config.FailureThreshold)
}

func (b *Breaker) trip() {
	if b.state == StateOpen {
		return
	}
	b.setState(StateOpen)
	b.nextRetryTime = time.Now().Add(b.config.Timeout)
	b.logger.WithFields(logrus.Fields{
		"breaker":         b.config.Name,
		"failures":        b.failures,
		"next_retry_time": b.nextRetryTime,
	}).Warn("circuit breaker opened")
}

func (b *Breaker) onExecutionFailure() {
	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen {
		b.trip()
	}
}

func (b *Breaker) onExecutionSuccess() {
	b.successes++
	b.lastSuccess = time.Now()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.setState(StateClosed)
			b.reset()
		}
	case StateClosed:
		if b.failures > 0 {
			b.failures--
		}
	}
}

func (b *Breaker) reset() {
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
	b.nextRetryTime = time.Time{}
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState
	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsOpen reports whether calls are currently being rejected outright.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == StateOpen
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:       b.state,
		Failures:    b.failures,
		Successes:   b.successes,
		Requests:    b.requests,
		LastFailure: b.lastFailure,
		LastSuccess: b.lastSuccess,
		NextRetry:   b.nextRetryTime,
	}
}

// SetStateChangeCallback registers fn to be called whenever the breaker
// transitions between states.
func (b *Breaker) SetStateChangeCallback(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}
