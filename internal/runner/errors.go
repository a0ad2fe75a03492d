package runner

import (
	"errors"
	"fmt"
)

// ErrHandlerNotFound is a fatal error: no handler is registered for the
// job's type. The job is failed with this as the diagnostic message,
// consuming an attempt like any other failure.
var ErrHandlerNotFound = errors.New("no handler registered for job type")

// PanicError wraps a recovered panic from a handler invocation. Treated as
// Fatal: always dead-lettered, consuming the attempt that triggered it.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic reports whether err is (or wraps) a PanicError.
func IsPanic(err error) bool {
	var p PanicError
	return errors.As(err, &p)
}
