package domain

import (
	"errors"
	"fmt"
)

// ErrSimulatedGatewayFailure is recorded on a payment the gateway declined.
// It is never returned to callers as a fault.
var ErrSimulatedGatewayFailure = errors.New("simulated gateway failure")

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.ID == "":
		return fmt.Sprintf("%s not found", e.Resource)
	default:
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// DuplicateResourceError is returned when a resource that may exist only once
// is created a second time. Idempotent callers can fetch the existing record.
type DuplicateResourceError struct {
	Resource string
	Key      string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Resource, e.Key)
}

// InvalidTransitionError reports a state change outside the transition table,
// or a write whose expected current state no longer matches.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Rule   string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
	if e.ID != "" {
		msg = fmt.Sprintf("invalid %s %s transition from %s to %s", e.Entity, e.ID, e.From, e.To)
	}
	if e.Rule != "" {
		msg += ": " + e.Rule
	}
	return msg
}

// Capacity dimensions.
const (
	DimensionVehicle   = "vehicle"
	DimensionPassenger = "passenger"
)

type CapacityExceededError struct {
	FerryID   string
	Date      string
	Dimension string
	Current   int
	Max       int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s capacity exceeded for ferry %s on %s: current=%d max=%d requested=%d",
		e.Dimension, e.FerryID, e.Date, e.Current, e.Max, e.Requested)
}

type RefundNotAllowedError struct {
	PaymentID string
	Status    string
	Reason    string
}

func (e *RefundNotAllowedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment %s cannot be refunded (%s): %s", e.PaymentID, e.Status, e.Reason)
	}
	return fmt.Sprintf("payment %s cannot be refunded from status %s", e.PaymentID, e.Status)
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateResourceError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

func IsCapacityExceeded(err error) bool {
	var target *CapacityExceededError
	return errors.As(err, &target)
}

func IsRefundNotAllowed(err error) bool {
	var target *RefundNotAllowedError
	return errors.As(err, &target)
}
