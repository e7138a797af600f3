package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for transport mapping. The set is closed; callers
// branch on Kind, never on message text.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Error is a structured error carried through the gate. Message is safe to
// send to clients; Err holds internal detail and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// CanUpgrade is set on KindQuotaExceeded only: whether the caller's role
	// permits self-service plan upgrade.
	CanUpgrade bool
	// Hint is an optional caller-facing remediation line.
	Hint string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// QuotaExceeded builds the distinguished quota denial, carrying whether the
// caller may self-serve an upgrade.
func QuotaExceeded(message, hint string, canUpgrade bool) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: message, Hint: hint, CanUpgrade: canUpgrade}
}

// KindOf returns the kind of err, or KindInternal for anything that is not an
// *Error. Unknown failures are never downgraded to caller-fixable categories.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
