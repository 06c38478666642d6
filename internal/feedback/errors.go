package feedback

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindGeneration  Kind = "generation"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
)

// Error is the only error type returned by Pipeline methods.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrGeneration  = &Error{Kind: KindGeneration}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrNotFound    = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return fmt.Sprintf("feedback %s error", e.Kind)
		}
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the kind sentinels, so errors.Is(err,
// ErrGeneration) holds for any generation failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
