package store

import (
	"errors"
	"fmt"
)

// Kind categorizes store failures.
type Kind string

const (
	// KindUnavailable means no database handle could be obtained.
	KindUnavailable Kind = "STORE_UNAVAILABLE"

	// KindSchemaUpgrade means the upgrade step failed while opening.
	KindSchemaUpgrade Kind = "SCHEMA_UPGRADE_FAILED"

	// KindWrite means a put failed on an open handle.
	KindWrite Kind = "WRITE_FAILED"

	// KindRead means a get failed on an open handle.
	KindRead Kind = "READ_FAILED"
)

// Sentinels for errors.Is matching against an *Error.
var (
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrSchemaUpgradeFailed = errors.New("schema upgrade failed")
	ErrWriteFailed         = errors.New("write failed")
	ErrReadFailed          = errors.New("read failed")
)

// Error is returned by store operations. It matches both its kind sentinel
// and the underlying cause with errors.Is.
type Error struct {
	Kind Kind
	Op   string
	Key  Key
	Err  error
}

func newError(kind Kind, op string, key Key, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnavailable:
		return ErrStoreUnavailable
	case KindSchemaUpgrade:
		return ErrSchemaUpgradeFailed
	case KindWrite:
		return ErrWriteFailed
	default:
		return ErrReadFailed
	}
}

// IsOpenFailure reports whether err came from opening the store rather than
// from an operation on an open handle.
func IsOpenFailure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrSchemaUpgradeFailed)
}
