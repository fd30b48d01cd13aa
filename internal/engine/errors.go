package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a caller error detected by a public operation.
//
// All failures in this core are local and non-fatal: a backend sync
// failure is bookkeeping (marked on the pending change), a stale
// discard is policy, and a persistence failure is logged and survived.
// EngineError covers the remaining category - calls that reference
// state which does not exist or transitions the status machine forbids.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityID identifies the affected entity, when known.
	EntityID string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotInitialized indicates an operation before Initialize.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrCodeNoPendingChange indicates the entity has no pending change.
	ErrCodeNoPendingChange ErrorCode = "NO_PENDING_CHANGE"

	// ErrCodeBadTransition indicates a forbidden status transition.
	ErrCodeBadTransition ErrorCode = "BAD_TRANSITION"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoPendingChange reports whether err is a missing-pending-change
// error. Uses errors.As to handle wrapped errors.
func IsNoPendingChange(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNoPendingChange
	}
	return false
}

// IsBadTransition reports whether err is a forbidden status transition.
func IsBadTransition(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeBadTransition
	}
	return false
}

func errNotInitialized() error {
	return &EngineError{Code: ErrCodeNotInitialized, Message: "engine used before Initialize"}
}

func errNoPendingChange(entityID string) error {
	return &EngineError{
		Code:     ErrCodeNoPendingChange,
		Message:  "no pending change for entity",
		EntityID: entityID,
	}
}

func errBadTransition(entityID string, from, to string) error {
	return &EngineError{
		Code:     ErrCodeBadTransition,
		Message:  fmt.Sprintf("status transition %s -> %s not permitted", from, to),
		EntityID: entityID,
	}
}
