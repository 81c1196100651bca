package domain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindOrderCreation           Kind = "order_creation"
	KindWidgetLoad              Kind = "widget_load"
	KindVerificationSoftFailure Kind = "verification_soft_failure"
	KindVerificationRejected    Kind = "verification_rejected"
	KindUserCancelled           Kind = "user_cancelled"
	KindConfiguration           Kind = "configuration"
)

// Error is a checkout failure tagged with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

var (
	ErrMissingConfig = errors.New("payment gateway not configured")
	// ErrBackendRefused marks a reachable backend answering with a non-2xx status.
	ErrBackendRefused = errors.New("backend refused request")
)
