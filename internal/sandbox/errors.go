package sandbox

import (
	"errors"
	"fmt"
)

// PermissionDeniedError is returned when a capability request falls
// outside the manifest or was refused by the operator. Tool calls that
// receive it perform no I/O.
type PermissionDeniedError struct {
	Manifest string
	Grant    string
	Reason   string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s requested %s (%s)", e.Manifest, e.Grant, e.Reason)
}

// IsPermissionDenied reports whether err is a permission denial
// anywhere in its chain.
func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}
