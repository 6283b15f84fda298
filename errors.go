package filesniff

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotExist          = errors.New("file does not exist")
	ErrIsDir             = errors.New("is a directory")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNotSupported      = errors.New("operation not supported")
	ErrNotAllowed        = errors.New("operation not allowed")
	ErrInvalidRange      = errors.New("invalid range")
	ErrInvalidPath       = errors.New("invalid path")
)

// PathError records an error and the store operation and path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// SourceError reports that the samples of a source could not be acquired.
// It always matches ErrSourceUnavailable with errors.Is.
type SourceError struct {
	Op     string
	Source string
	Err    error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Source, ErrSourceUnavailable)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Source, ErrSourceUnavailable, e.Err)
}

// Unwrap returns the sentinel and the underlying cause.
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSourceUnavailable}
	}
	return []error{ErrSourceUnavailable, e.Err}
}

// newSourceError wraps err unless it already is a *SourceError.
func newSourceError(op, source string, err error) error {
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return &SourceError{Op: op, Source: source, Err: err}
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsSourceUnavailable reports whether an error indicates that classification
// failed because the input bytes could not be read
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsNotAllowed reports whether an error indicates a policy or confinement
// violation
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotAllowed)
}
