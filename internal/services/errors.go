package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/nsmonitor/apiserver/internal/store"
)

// Rule violations. Each is wrapped in a RuleError carrying the message shown
// to clients.
var (
	ErrForbidden         = errors.New("forbidden")
	ErrSystemRole        = errors.New("system role is protected")
	ErrRoleInUse         = errors.New("role has assigned users")
	ErrPermissionInUse   = errors.New("permission is assigned to roles")
	ErrLastSuperAdmin    = errors.New("last super admin")
	ErrUserReferenced    = errors.New("user is referenced")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// RuleError is a business rule violation with a client-facing message.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func (e *RuleError) Unwrap() error { return e.Kind }

func ruleError(kind error, message string) error {
	return &RuleError{Kind: kind, Message: message}
}

// ValidationError collects per-field input problems.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

func fieldError(field, message string) error {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
