package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)

// ValidationError marks malformed or empty caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when the attempted edge is not in the
// lifecycle graph. It carries the attempted pair for diagnostics.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// ConflictError is returned when a conditional status update loses the race:
// the edge may be legal, but the order no longer holds the expected status.
type ConflictError struct {
	OrderID  string
	Expected OrderStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s no longer in status %s", e.OrderID, e.Expected)
}

// RiskBlockedError is a policy denial, not a bug. The assessment that caused
// it travels with the error so the caller can audit it.
type RiskBlockedError struct {
	Assessment RiskAssessment
}

func (e *RiskBlockedError) Error() string {
	return fmt.Sprintf("blocked by risk policy (score %d)", e.Assessment.Score)
}
