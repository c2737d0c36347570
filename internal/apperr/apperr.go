// Package apperr defines the closed error taxonomy shared by every
// component so the HTTP layer and command adapters can switch on kind
// instead of matching strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the design's error taxonomy.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindInsufficientFund Kind = "insufficient_funds"
	KindRateLimited      Kind = "rate_limited"
	KindOnCooldown       Kind = "on_cooldown"
	KindStateConflict    Kind = "state_conflict"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindStoreUnavailable Kind = "store_unavailable"
	KindExternalTimeout  Kind = "external_timeout"
	KindExternalError    Kind = "external_error"
	KindUnexpected       Kind = "unexpected"
)

// Error wraps an underlying cause with a taxonomy Kind and optional
// structured fields the HTTP/command layers render to the caller.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, apperr.KindX) style matching work by comparing
// kinds when the target is a bare *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func WithFields(kind Kind, message string, fields map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

// KindOf extracts the Kind from err, defaulting to KindUnexpected when
// err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// InsufficientFunds builds the InsufficientFunds(currency, have, need) error
// called for in spec.md §4.2/§7.
func InsufficientFunds(currency string, have, need float64) *Error {
	return &Error{
		Kind:    KindInsufficientFund,
		Message: fmt.Sprintf("insufficient %s: have %.4f, need %.4f", currency, have, need),
		Fields:  map[string]any{"currency": currency, "have": have, "need": need},
	}
}

// RateLimited builds the {limited, retry_after, reason} error from §4.3.
func RateLimited(reason string, retryAfterSeconds float64) *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: fmt.Sprintf("rate limited: %s", reason),
		Fields:  map[string]any{"reason": reason, "retry_after": retryAfterSeconds},
	}
}

func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
		Fields:  map[string]any{"entity": entity, "id": id},
	}
}

func StateConflict(message string) *Error {
	return &Error{Kind: KindStateConflict, Message: message}
}

func PermissionDenied(message string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message}
}

func InvalidInput(field, reason string) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: fmt.Sprintf("%s: %s", field, reason),
		Fields:  map[string]any{"field": field, "reason": reason},
	}
}
