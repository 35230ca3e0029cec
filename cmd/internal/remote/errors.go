package remote

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to user-facing copy).
var (
	// ErrUnavailable means the backend could not be reached or failed at the
	// transport level. Never retried automatically.
	ErrUnavailable = errors.New("remote_unavailable")

	// ErrRejected means the backend was reached but refused the operation
	// (duplicate email, bad credentials, expired token, ...).
	ErrRejected = errors.New("remote_rejected")

	// ErrNotFound means a referenced row does not exist.
	ErrNotFound = errors.New("not_found")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind MUST be one of the sentinel kinds above. Msg may carry provider
// detail for substring-based copy mapping; it must never contain secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsUnavailable reports whether err represents ErrUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsRejected reports whether err represents ErrRejected.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Detail extracts the provider detail message from err, if any.
func Detail(err error) string {
	var oe OpError
	if errors.As(err, &oe) {
		return oe.Msg
	}
	return ""
}

func unavailable(op string, err error) error {
	return OpError{Op: op, Kind: ErrUnavailable, Msg: err.Error()}
}

func rejected(op, msg string) error {
	return OpError{Op: op, Kind: ErrRejected, Msg: msg}
}

func notFound(op, resource string) error {
	return OpError{Op: op, Kind: ErrNotFound, Msg: resource}
}
