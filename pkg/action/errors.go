package action

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ValidationFailure reports input that failed the action's rules.
type ValidationFailure struct {
	Errors  map[string][]string
	Message string
}

func (f *ValidationFailure) Error() string {
	fields := make([]string, 0, len(f.Errors))
	for field := range f.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if len(fields) == 0 {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Message, strings.Join(fields, ", "))
}

// Invalid returns a ValidationFailure for a single field.
func Invalid(field, message string) *ValidationFailure {
	return &ValidationFailure{
		Errors:  map[string][]string{field: {message}},
		Message: DefaultValidationMessage,
	}
}

// PermissionFailure reports a caller that is unauthenticated (401) or lacks
// a capability (403).
type PermissionFailure struct {
	Message    string
	StatusCode int
}

func (f *PermissionFailure) Error() string { return f.Message }

// GenericFailure is an anticipated domain error with a caller chosen status.
type GenericFailure struct {
	Message    string
	StatusCode int
}

func (f *GenericFailure) Error() string { return f.Message }

// Fail returns a GenericFailure with the given status.
func Fail(status int, format string, args ...any) *GenericFailure {
	return &GenericFailure{Message: fmt.Sprintf(format, args...), StatusCode: status}
}

// NotFound returns a 404 GenericFailure.
func NotFound(format string, args ...any) *GenericFailure {
	return Fail(http.StatusNotFound, format, args...)
}

// Conflict returns a 409 GenericFailure.
func Conflict(format string, args ...any) *GenericFailure {
	return Fail(http.StatusConflict, format, args...)
}

// UnexpectedFailure wraps a panic recovered while running an action, or an
// operation that returned neither a Result nor an error.
type UnexpectedFailure struct {
	Message string
	Cause   any
}

func (f *UnexpectedFailure) Error() string { return f.Message }
