package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ValidationError reports malformed or missing user input. It is raised before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed [" + e.Field + "]: " + e.Reason
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PurchaseError reports a target that is already sold or otherwise ineligible.
type PurchaseError struct {
	Key    ListingKey
	Reason string
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("purchase rejected [%s]: %s", e.Key, e.Reason)
}

// NoInventoryError is returned when random assignment finds nothing unsold.
type NoInventoryError struct{}

func (e *NoInventoryError) Error() string {
	return "no unsold listing available"
}

// ExternalCallError wraps a failed or rejected ledger read/write. The cause is passed through.
type ExternalCallError struct {
	Op        string // Ledger operation (e.g., "getAllListedNFTs", "buyNFT")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *ExternalCallError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExternalCallError) IsRetriable() bool {
	return e.Retriable
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// NewExternalCallError creates a retriable ledger error
func NewExternalCallError(op string, err error) *ExternalCallError {
	return &ExternalCallError{Op: op, Err: err, Retriable: true}
}

// NewFatalExternalCallError creates a non-retriable ledger error (e.g. contract revert)
func NewFatalExternalCallError(op string, err error) *ExternalCallError {
	return &ExternalCallError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrActionInFlight is returned when the same action is submitted while one is pending.
	ErrActionInFlight = errors.New("action already in flight")

	// ErrLedgerUnavailable is returned by live operations when no ledger is wired.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
