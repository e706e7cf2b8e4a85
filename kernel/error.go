package kernel

import "errors"

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure so that they can be
// returned and compared without allocating memory.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	// Fatal is set for errors that indicate corruption of kernel-internal
	// state (e.g. a double free). Callers must not attempt to recover from
	// a fatal error; the top-level caller is expected to halt the system.
	Fatal bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// IsFatal returns true if err is a *Error with its Fatal flag set.
func IsFatal(err error) bool {
	var kErr *Error
	if errors.As(err, &kErr) && kErr != nil {
		return kErr.Fatal
	}

	return false
}
