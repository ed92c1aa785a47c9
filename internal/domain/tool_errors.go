package domain

import (
	"errors"
	"strings"
)

var ErrToolNotFound = errors.New("tool not found")
var ErrNotInitialized = errors.New("registry not initialized")
var ErrStoreClosed = errors.New("registry store is closed")
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// ValidationError carries every violated rule for a rejected tool record.
// Callers present the full list at once rather than fixing one rule per
// round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "invalid tool"
	}
	return "invalid tool: " + strings.Join(e.Violations, "; ")
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
