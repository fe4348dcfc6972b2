// Package apperror defines the error taxonomy shared by the domain packages
// and the HTTP adapter.
package apperror

import (
	"net/http"

	"github.com/go-faster/errors"
)

// Kind classifies an error for callers that need to react to it.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthentication
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	default:
		return "internal"
	}
}

// FieldError describes a validation failure of a single input field.
type FieldError struct {
	Field   string
	Message string
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Kinder is implemented by errors that carry their own classification.
type Kinder interface {
	error
	ErrorKind() Kind
}

// ErrorKind implements Kinder.
func (e *Error) ErrorKind() Kind { return e.Kind }

// Validation returns a validation error with optional field details.
func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NotFound returns "<resource> not found".
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Conflict returns an error for a request that contradicts current state.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Authentication returns an error for rejected credentials or signatures.
func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// Internal wraps err as an internal failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf reports the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns field details of the first *Error in err's chain.
func FieldsOf(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client: the classified
// error's own text without the wrap chain, or a generic text for internal errors.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	var k Kinder
	if !errors.As(err, &k) {
		return err.Error()
	}
	if e, ok := k.(*Error); ok {
		return e.Message
	}
	return k.Error()
}
