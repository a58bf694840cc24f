package services

import (
	"errors"
	"fmt"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/store"
)

// Kind classifies a service failure so the HTTP layer can map it to a
// stable status code.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAuthorization  Kind = "forbidden"
	KindAuthentication Kind = "unauthenticated"
	KindConflict       Kind = "conflict"
	KindUpstream       Kind = "upstream"
)

// Reason codes raised by services rather than by the policy package.
const (
	ReasonDuplicateEmail    = "duplicate_email"
	ReasonClaimDecided      = "claim_already_decided"
	ReasonInvalidTransition = "invalid_transition"
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &services.Error{Kind: services.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func ErrValidation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func ErrNotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func ErrUnauthenticated(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func ErrConflict(reason, msg string) error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

func ErrUpstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// ErrForbidden converts a denied policy decision into an authorization error.
func ErrForbidden(decision policy.Decision, msg string) error {
	return &Error{Kind: KindAuthorization, Reason: decision.Reason, Message: msg}
}

// KindOf returns the kind of err, or KindUpstream for foreign errors.
func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return KindUpstream
}

// storeError translates a repository error. notFound is the message used
// when the record does not exist.
func storeError(err error, notFound, failed string) error {
	if err == nil {
		return nil
	}
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound(notFound)
	}
	return ErrUpstream(failed, err)
}
