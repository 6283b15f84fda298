package policy

import (
	"errors"
	"fmt"

	"github.com/gobeaver/filesniff/magic"
)

// Constraint names the part of a Policy a classification failed.
type Constraint string

const (
	ConstraintSize      Constraint = "size"
	ConstraintMIME      Constraint = "mime"
	ConstraintExtension Constraint = "extension"
)

// ErrRejected matches every *ValidationError with errors.Is.
var ErrRejected = errors.New("rejected by policy")

// ValidationError reports a classification rejected by a Policy.
type ValidationError struct {
	Constraint     Constraint
	Classification magic.Classification
	Size           int64
	Reason         string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrRejected, e.Constraint, e.Reason)
}

// Is reports whether target is ErrRejected.
func (e *ValidationError) Is(target error) bool {
	return target == ErrRejected
}

func reject(constraint Constraint, c magic.Classification, size int64, format string, args ...any) *ValidationError {
	return &ValidationError{
		Constraint:     constraint,
		Classification: c,
		Size:           size,
		Reason:         fmt.Sprintf(format, args...),
	}
}

// ConstraintOf returns the failed constraint of a wrapped *ValidationError,
// or "" when err is not a policy rejection.
func ConstraintOf(err error) Constraint {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Constraint
	}
	return ""
}
