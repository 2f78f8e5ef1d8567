// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
)

// ErrCommitFailed is returned when a multi-row write was rolled back.
var ErrCommitFailed = errors.New("transaction failed and was rolled back")

// NotFoundError indicates a referenced principal, member, group or employee
// does not resolve.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates a bound or required field was violated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates self-delegation or a duplicate.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForbiddenError is a mutation-guard or voting-eligibility rejection.
// Voters lists the members whose votes locked the group, when known.
type ForbiddenError struct {
	Message string
	Voters  []string
}

func (e *ForbiddenError) Error() string { return e.Message }

func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func ErrConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func ErrForbidden(voters []string, format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...), Voters: voters}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
