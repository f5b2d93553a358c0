// Package apperr defines the error classes shared across domain services so
// that HTTP handlers can map failures to status codes without inspecting
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or incomplete request. No state is
// mutated before it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Ref)
}

func NotFound(entity, ref string) error {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// AuthorizationError reports a failed role gate or a notification whose
// signature did not verify.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

func Authorization(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// GatewayError reports a failed outbound call to the payment gateway:
// timeout, transport failure, non-2xx response, or a malformed body. The
// triggering operation may be retried as long as no transaction_id was
// recorded locally.
type GatewayError struct {
	Op         string // "charge", "snap", "status"
	StatusCode int    // HTTP status from the gateway, 0 on transport failure
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may safely retry the operation.
// Transport failures and 5xx responses are retryable; 4xx responses mean the
// request itself was rejected and retrying the same request will not help.
func (e *GatewayError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

func Gateway(op string, statusCode int, err error) error {
	return &GatewayError{Op: op, StatusCode: statusCode, Err: err}
}

// Conflict reports a request that is valid in shape but rejected by an
// invariant, such as re-initiating a gateway transaction on a payment that
// already carries a transaction_id.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func Conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}

func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
