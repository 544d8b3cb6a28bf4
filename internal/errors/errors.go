/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the structured error kinds shared across Cognigate's
// governance core and its ambient infrastructure.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType is a closed classification of the failure kinds the core can raise.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeAuth:       http.StatusUnauthorized,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusRequestTimeout,
	ErrorTypeRateLimit:  http.StatusTooManyRequests,
	ErrorTypeDatabase:   http.StatusInternalServerError,
	ErrorTypeNetwork:    http.StatusInternalServerError,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// AppError is the one error shape every Cognigate package returns across its
// boundaries, so callers can branch on Type rather than parse messages.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

// New creates an AppError with no cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusFor(t),
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap attaches an underlying cause to a new AppError.
func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

// Wrapf attaches an underlying cause to a new AppError with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusFor(t ErrorType) int {
	if code, ok := statusByType[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails mutates Details in place and returns the same error for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf mutates Details with a formatted string.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Predefined constructors matching the error kinds named in the governance spec.

func ValidationFailure(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func ValidationFailuref(format string, args ...any) *AppError {
	return Newf(ErrorTypeValidation, format, args...)
}

// AdmissionDenied represents a C2 rate-admission denial. Only the reason is
// carried, as Details; the remaining count, reset time and retry-after of a
// denial are fields of admission.Outcome, which feeds the HTTP headers.
func AdmissionDenied(reason string) *AppError {
	return New(ErrorTypeRateLimit, "admission denied").WithDetails(reason)
}

// DuplicateTracking is a programmer error: C4.Track called on an id already tracked.
func DuplicateTracking(executionID string) *AppError {
	return Newf(ErrorTypeConflict, "execution %s is already tracked", executionID)
}

// NotTracked is a programmer error: an operation required a tracked execution that
// does not exist (e.g. SetResourceMonitor).
func NotTracked(executionID string) *AppError {
	return Newf(ErrorTypeNotFound, "execution %s is not tracked", executionID)
}

// RepositoryFailure wraps a persistence-layer error without retrying; the
// circuit breaker at the boundary decides fail-open/fail-fast.
func RepositoryFailure(cause error, message string) *AppError {
	return Wrap(cause, ErrorTypeDatabase, message)
}

// Is reports whether err is an *AppError of the given type, unwrapping as needed.
func Is(err error, t ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == t
}
