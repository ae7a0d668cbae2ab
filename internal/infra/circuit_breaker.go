package infra

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"nft_market/internal/domain"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	StateClosed   BreakerState = iota // Normal operation
	StateOpen                         // Failing, reject requests
	StateHalfOpen                     // Testing recovery
)

func (s BreakerState) String() string {
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

// CircuitBreaker isolates the ledger connection from repeated transport failures.
// Thread-safe for concurrent use.
type CircuitBreaker struct {
	name string
	mu   sync.RWMutex

	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time

	// Configuration
	failureThreshold int           // Failures before opening
	successThreshold int           // Successes before closing (in half-open)
	timeout          time.Duration // Time before trying half-open

	onChange func(BreakerState)
}

// CircuitBreakerConfig holds configuration for creating a circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration

	// OnChange is called with the new state after every transition (under the breaker lock).
	OnChange func(BreakerState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		onChange:         cfg.OnChange,
	}
}

// Allow checks if a request should be allowed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.transition(StateHalfOpen)
			cb.successCount = 0
			slog.Info("Circuit breaker transitioning to HALF_OPEN",
				slog.String("name", cb.name))
			return true
		}
		return false

	case StateHalfOpen:
		return true

	default:
		return false
	}
}

// Execute runs fn if the breaker allows it. Only retriable errors count as failures;
// a rejected contract call says nothing about the health of the connection.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.RecordSuccess()
	case domain.IsRetriable(err):
		cb.RecordFailure()
	}
	return err
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
			slog.Info("Circuit breaker CLOSED (recovered)",
				slog.String("name", cb.name))
		}
	}
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(StateOpen)
			slog.Warn("Circuit breaker OPEN (failures exceeded threshold)",
				slog.String("name", cb.name),
				slog.Int("failures", cb.failureCount))
		}

	case StateHalfOpen:
		// Any failure in half-open returns to open
		cb.transition(StateOpen)
		cb.successCount = 0
		slog.Warn("Circuit breaker OPEN (half-open test failed)",
			slog.String("name", cb.name))
	}
}

// GetState returns the current state (for monitoring).
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the circuit breaker to closed state (for testing/admin).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transition(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	slog.Info("Circuit breaker RESET", slog.String("name", cb.name))
}

func (cb *CircuitBreaker) transition(s BreakerState) {
	cb.state = s
	if cb.onChange != nil {
		cb.onChange(s)
	}
}
