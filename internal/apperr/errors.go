// Package apperr defines the error taxonomy shared by planning and sync code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and response-code decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotConnected
	KindNotFound
	KindTransient
	KindPermanent
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotConnected:
		return "not_connected"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient_provider"
	case KindPermanent:
		return "permanent_provider"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus enough context to log and map it.
type Error struct {
	Kind       Kind
	Op         string
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Provider != "":
		return fmt.Sprintf("%s (%s): %s", e.Op, e.Provider, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(op, msg string) error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: msg}
}

// NotConnected reports that the user has not linked the provider account.
func NotConnected(op, provider string) error {
	return &Error{Kind: KindNotConnected, Op: op, Provider: provider, Message: "account not connected"}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps a retryable provider failure (rate limit, 5xx, timeout, quota).
func Transient(op, provider string, status int, err error) error {
	return &Error{Kind: KindTransient, Op: op, Provider: provider, StatusCode: status, Err: err}
}

// Permanent wraps a provider failure that must not be retried.
func Permanent(op, provider string, status int, err error) error {
	return &Error{Kind: KindPermanent, Op: op, Provider: provider, StatusCode: status, Err: err}
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCodeOf returns the provider status code carried by err, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return Is(err, KindTransient)
}
