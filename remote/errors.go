package remote

import (
	"errors"
	"fmt"
)

// Kind classifies every error surfaced by this package.
type Kind int

const (
	KindConnection Kind = iota + 1
	KindCapabilityUnavailable
	KindList
	KindIO
	KindIntegrity
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindCapabilityUnavailable:
		return "capability unavailable"
	case KindList:
		return "list error"
	case KindIO:
		return "io error"
	case KindIntegrity:
		return "integrity check failed"
	case KindOperation:
		return "operation error"
	default:
		return "unknown error"
	}
}

// Sentinels matched by errors.Is against any *Error or *IntegrityError of
// the same kind.
var (
	ErrConnection            = errors.New(KindConnection.String())
	ErrCapabilityUnavailable = errors.New(KindCapabilityUnavailable.String())
	ErrListFailed            = errors.New(KindList.String())
	ErrIO                    = errors.New(KindIO.String())
	ErrIntegrityCheckFailed  = errors.New(KindIntegrity.String())
	ErrOperationFailed       = errors.New(KindOperation.String())
)

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindCapabilityUnavailable:
		return ErrCapabilityUnavailable
	case KindList:
		return ErrListFailed
	case KindIO:
		return ErrIO
	case KindIntegrity:
		return ErrIntegrityCheckFailed
	case KindOperation:
		return ErrOperationFailed
	}
	return nil
}

// Error records the operation and path that failed along with the backend
// cause. The cause is kept for diagnostics only; callers branch on Kind.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IntegrityError is returned when both digests were available and differ.
// The transferred file is left where it is.
type IntegrityError struct {
	Path     string
	Expected Checksum
	Actual   Checksum
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityCheckFailed
}

// KindOf returns the Kind carried by err, or 0 if err did not come from
// this package.
func KindOf(err error) Kind {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return KindIntegrity
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var errNotConnected = errors.New("no connection available")
