package state

import (
	"errors"
	"fmt"
)

// PermissionError reports that the caller lacked the required permission for
// an operation on an entry. It is a structured failure, never a panic, and is
// the only store error callers are expected to branch on besides validation.
type PermissionError struct {
	Operation string // "read", "write" or "delete"
	Key       string // fully-qualified key
	Caller    string // primary caller identity (agent name when present)
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("insufficient permission: caller %q may not %s %q", e.Caller, e.Operation, e.Key)
}

// ValidationError reports a malformed key or an unknown scope. It is returned
// synchronously before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsPermissionDenied reports whether err is a permission failure.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
