// Package failure defines the error kinds returned by the lending core.
// Kinds are for programs, messages are for humans.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers
type Kind string

const (
	NotFound        Kind = "NOT_FOUND"
	Conflict        Kind = "CONFLICT"
	Invalid         Kind = "INVALID"
	DeliveryFailure Kind = "DELIVERY_FAILURE"
	StoreFailure    Kind = "STORE_FAILURE"
)

// Code identifies a specific business outcome within a kind
type Code string

const (
	CodeBookNotFound       Code = "BOOK_NOT_FOUND"
	CodeStudentNotFound    Code = "STUDENT_NOT_FOUND"
	CodeIssueNotFound      Code = "ISSUE_NOT_FOUND"
	CodeAlreadyIssued      Code = "ALREADY_ISSUED"
	CodeBookUnavailable    Code = "BOOK_UNAVAILABLE"
	CodeDuplicateID        Code = "DUPLICATE_ID"
	CodeInvalidID          Code = "INVALID_ID"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"
	CodeMissingEmail       Code = "MISSING_EMAIL"
	CodeNotIssuedToStudent Code = "NOT_ISSUED_TO_STUDENT"
	CodeBookIssued         Code = "BOOK_ISSUED"
	CodeStudentHasLoans    Code = "STUDENT_HAS_LOANS"
	CodeDeliveryFailed     Code = "DELIVERY_FAILED"
	CodeStoreFailure       Code = "STORE_FAILURE"
)

var (
	ErrBookNotFound       = New(NotFound, CodeBookNotFound, "book not found")
	ErrStudentNotFound    = New(NotFound, CodeStudentNotFound, "student not found")
	ErrIssueNotFound      = New(NotFound, CodeIssueNotFound, "no active issue found")
	ErrAlreadyIssued      = New(Conflict, CodeAlreadyIssued, "book is already issued")
	ErrBookUnavailable    = New(Conflict, CodeBookUnavailable, "book has no copies available")
	ErrDuplicateID        = New(Conflict, CodeDuplicateID, "id already exists")
	ErrInvalidID          = New(Invalid, CodeInvalidID, "id must not be empty")
	ErrInvalidQuantity    = New(Invalid, CodeInvalidQuantity, "quantity must not be negative")
	ErrMissingEmail       = New(Invalid, CodeMissingEmail, "student has no email address")
	ErrNotIssuedToStudent = New(Conflict, CodeNotIssuedToStudent, "book is not issued to this student")
	ErrBookIssued         = New(Conflict, CodeBookIssued, "book is currently issued")
	ErrStudentHasLoans    = New(Conflict, CodeStudentHasLoans, "student has books issued")
	ErrDeliveryFailed     = New(DeliveryFailure, CodeDeliveryFailed, "reminder delivery failed")
	ErrStoreFailure       = New(StoreFailure, CodeStoreFailure, "store operation failed")
)

// Error is a coded business error
type Error struct {
	kind Kind
	code Code
	msg  string
}

// New creates a coded error
func New(kind Kind, code Code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Code() Code    { return e.code }

// KindOf extracts the kind of err, StoreFailure for uncoded errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.kind
	}
	return StoreFailure
}

// CodeOf extracts the code of err, empty for uncoded errors
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.code
	}
	return ""
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Store wraps a downstream persistence error
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreFailure, fmt.Errorf("failed to %s: %w", op, err))
}

// Delivery wraps a downstream send error
func Delivery(reason string) error {
	return errors.Join(ErrDeliveryFailed, errors.New(reason))
}

// Withf attaches context to a coded error without hiding its code
func Withf(base *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
