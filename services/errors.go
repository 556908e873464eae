// services/errors.go - Error taxonomy for the achievement engine
package services

import "fmt"

// ValidationError reports a malformed definition or progress input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports an unknown definition, record or user.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// PermissionError reports a non-admin catalog mutation or cross-user access.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

// ConflictError reports a duplicate definition name or a concurrent-update
// collision that survived the retry.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// ConditionEvaluationError reports an unsupported condition type or field.
// During event fan-out it is collected per definition, never fatal to the
// batch.
type ConditionEvaluationError struct {
	ConditionType string
	Field         string
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("unsupported condition %q (field %q)", e.ConditionType, e.Field)
}
