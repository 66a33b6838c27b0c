package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies every failure returned by the client.
type ErrorKind int

// error kinds
const (
	KindConfig ErrorKind = iota + 1
	KindTransport
	KindExpired
	KindRejected
	KindMalformedLayout
	KindNotFound
	KindSubmitFailed
)

var kindNames = map[ErrorKind]string{
	KindConfig:          "ConfigError",
	KindTransport:       "TransportError",
	KindExpired:         "Expired",
	KindRejected:        "Rejected",
	KindMalformedLayout: "MalformedLayout",
	KindNotFound:        "NotFound",
	KindSubmitFailed:    "SubmitFailed",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// sentinel errors, one per kind, for use with errors.Is
var (
	ErrConfig          = &Error{Kind: KindConfig}
	ErrTransport       = &Error{Kind: KindTransport}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrRejected        = &Error{Kind: KindRejected}
	ErrMalformedLayout = &Error{Kind: KindMalformedLayout}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrSubmitFailed    = &Error{Kind: KindSubmitFailed}
)

// Error is a typed client failure. Outcome is set for validated but failed
// transactions, Provisional for expired or rejected submissions.
type Error struct {
	Kind        ErrorKind
	Reason      string
	Outcome     *TransactionOutcome
	Provisional *SubmitResult
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired) works
// on every expired failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError returns a typed error with a formatted reason.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// WrapError wraps err as the given kind with a stack.
func WrapError(kind ErrorKind, err error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Err: errors.WithStack(err)}
}

// KindOf returns the kind of err, or 0 if err is not a typed client error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err is a NotFound result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
