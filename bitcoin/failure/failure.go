// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package failure defines structured errors surfaced by inscription pipeline.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BoostyLabs/inscriber/internal/retry"
)

// Error is a structured error with a defined code.
type Error struct {
	Code        Code
	Category    Category
	Severity    Severity
	Message     string
	Suggestion  string
	Recoverable bool
	Details     map[string]any
	Cause       error
	Timestamp   time.Time
}

// New returns error of provided code filled from the catalog.
// Unknown codes are described as unexpected errors while keeping the code.
func New(code Code) *Error {
	def, ok := catalog[code]
	if !ok {
		def = catalog[CodeUnexpected]
	}

	return &Error{
		Code:        code,
		Category:    def.category,
		Severity:    def.severity,
		Message:     def.message,
		Suggestion:  def.suggestion,
		Recoverable: def.recoverable,
		Timestamp:   time.Now().UTC(),
	}
}

// Wrap returns error of provided code caused by err.
func Wrap(code Code, err error) *Error {
	e := New(code)
	e.Cause = err
	return e
}

// Wrapf returns error of provided code caused by formatted error.
func Wrapf(code Code, format string, args ...any) *Error {
	return Wrap(code, fmt.Errorf(format, args...))
}

// From converts any error into structured one.
// Structured errors found in the chain are returned as is, others become UNEXPECTED_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(CodeUnexpected, err)
}

// Error implements error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is structured error of the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code
}

// WithDetail returns copy of the error with additional detail.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value

	return &cp
}

// WithMessage returns copy of the error with replaced message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// CodeOf returns code of structured error in the chain, or UNEXPECTED_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return CodeUnexpected
}

// IsRecoverable reports whether operation failed with err is worth retrying.
// Errors without defined code are treated as recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}

	return true
}

// SuggestionFor maps error to user-facing remediation.
func SuggestionFor(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Suggestion != "" {
		return e.Suggestion
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return catalog[CodeBroadcastTimeout].suggestion
	default:
		return catalog[CodeUnexpected].suggestion
	}
}

// RetryOptions describes WithRetry policy.
type RetryOptions struct {
	MaxAttempts uint
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      time.Duration
	OnRetry     func(attempt uint, err *Error)
}

// WithRetry calls operation with exponential backoff until it succeeds or attempts are exhausted.
// Unrecoverable errors stop retrying immediately. The last error is returned as structured error.
func WithRetry(ctx context.Context, opts RetryOptions, operation func(ctx context.Context) error) error {
	err := retry.Do(ctx, retry.Options{
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.BaseBackoff,
		MaxDelay:    opts.MaxBackoff,
		Jitter:      opts.Jitter,
		Retryable:   IsRecoverable,
		OnRetry: func(attempt uint, err error) {
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, From(err))
			}
		},
	}, operation)
	if err == nil {
		return nil
	}

	return From(err)
}
