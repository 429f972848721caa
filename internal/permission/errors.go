package permission

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAuthenticationRequired indicates the request carries no identity.
// It is always surfaced to the caller, never silently defaulted.
var ErrAuthenticationRequired = errors.New("authentication required")

// DeniedError reports a failed permission check. Evaluator queries prefer
// returning false over errors; this type exists for mutation endpoints that
// must return a structured denial.
type DeniedError struct {
	Permission string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("missing permission %q", e.Permission)
}

// PropertyAccessDeniedError is a denial scoped to a property and required
// access level. It carries context for diagnostics, unlike a generic
// permission denial.
type PropertyAccessDeniedError struct {
	PropertyID uuid.UUID
	Level      AccessLevel
}

func (e *PropertyAccessDeniedError) Error() string {
	return fmt.Sprintf("access to property %s requires level %q", e.PropertyID, e.Level)
}
