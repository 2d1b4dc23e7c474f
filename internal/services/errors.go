package services

import (
	"errors"
	"strings"

	"github.com/diewo77/go-duedates/validation"
	"gorm.io/gorm"
)

// Kind classifies service errors for callers; handlers map kinds to statuses.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation_failed"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindConflict           Kind = "conflict"
	KindTransactionAborted Kind = "transaction_aborted"
)

// Error is the error type returned by every service in this package.
type Error struct {
	Kind    Kind
	Message string
	Fields  validation.Violations
	Quota   *QuotaResult
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the operation may succeed if repeated.
func (e *Error) Retryable() bool { return e.Kind == KindTransactionAborted }

// Sentinels for errors.Is.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrQuotaExceeded      = &Error{Kind: KindQuotaExceeded}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
)

func notFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func invalid(v validation.Violations) *Error {
	return &Error{Kind: KindValidation, Fields: v}
}

func invalidField(field, code string) *Error {
	return invalid(validation.Violations{field: code})
}

func quotaExceeded(res QuotaResult) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: res.Resource + " limit reached", Quota: &res}
}

func aborted(err error) *Error {
	return &Error{Kind: KindTransactionAborted, Err: err}
}

// KindOf returns the kind of err, or "" for errors not produced here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// isDuplicateKey recognizes unique violations whether or not the dialector
// translated them into gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint failed")
}
