package core

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is a validation failure attached to one input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors holds every failing field of a submission, in form order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Message returns the message for a field, or "" if the field passed.
func (v ValidationErrors) Message(field string) string {
	for _, fe := range v {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Map indexes messages by field name for template lookups.
func (v ValidationErrors) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, fe := range v {
		m[fe.Field] = fe.Message
	}
	return m
}

// AsValidationErrors extracts ValidationErrors from an error chain.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// PersistKind tells callers whether a failed storage call may be retried.
type PersistKind int

const (
	// PersistTransient covers network and service availability failures.
	PersistTransient PersistKind = iota + 1
	// PersistPermanent covers rejected writes such as duplicates.
	PersistPermanent
)

func (k PersistKind) String() string {
	switch k {
	case PersistTransient:
		return "transient"
	case PersistPermanent:
		return "permanent"
	}
	return "unknown"
}

// PersistError is returned by storage backends.
type PersistError struct {
	Kind PersistKind
	Op   string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable storage failure. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Kind: PersistTransient, Op: op, Err: err}
}

// Permanent wraps err as a storage rejection. A nil err stays nil.
func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Kind: PersistPermanent, Op: op, Err: err}
}

func persistKind(err error) PersistKind {
	var pe *PersistError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// IsTransient reports whether err is a retryable storage failure.
func IsTransient(err error) bool { return persistKind(err) == PersistTransient }

// IsPermanent reports whether err is a storage rejection.
func IsPermanent(err error) bool { return persistKind(err) == PersistPermanent }
