// Package datastore provides error handling helpers for database operations
package datastore

import (
	"fmt"
	"strings"

	"github.com/gigshield/reviewcore/internal/errors"
)

const componentName = "datastore"

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component(componentName).
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}
	return withPairs(builder, context).Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// resourceError creates a resource error, escalated when the disk is full
func resourceError(err error, operation, resourceType string) error {
	priority := errors.PriorityMedium
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "disk full") || strings.Contains(errStr, "no space") {
		priority = errors.PriorityCritical
	}

	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryDatabase).
		Priority(priority).
		Context("operation", operation).
		Context("resource_type", resourceType).
		Build()
}

// stateError creates a state management error (locks, transactions)
func stateError(err error, operation, stateType string, context ...any) error {
	priority := errors.PriorityMedium
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "deadlock") || strings.Contains(errStr, "corrupt") {
		priority = errors.PriorityHigh
	}

	builder := errors.New(err).
		Component(componentName).
		Category(errors.CategoryState).
		Priority(priority).
		Context("operation", operation).
		Context("state_type", stateType)
	return withPairs(builder, context).Build()
}

// conflictError reports a guarded update that lost its race. It wraps
// ErrStatusConflict so callers can match it with errors.Is.
func conflictError(operation, id string, context ...any) error {
	builder := errors.New(fmt.Errorf("%s %s: %w", operation, id, ErrStatusConflict)).
		Component(componentName).
		Category(errors.CategoryConflict).
		Priority(errors.PriorityLow).
		Context("operation", operation).
		Context("id", id)
	return withPairs(builder, context).Build()
}

// notFoundError creates a not found error
func notFoundError(resource, identifier string) error {
	return errors.Newf("%s not found", resource).
		Component(componentName).
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

// criticalError creates a critical system error
func criticalError(err error, operation, reason string, context ...any) error {
	builder := errors.New(err).
		Component(componentName).
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityCritical).
		Context("operation", operation).
		Context("critical_reason", reason)
	return withPairs(builder, context).Build()
}

func withPairs(builder *errors.ErrorBuilder, context []any) *errors.ErrorBuilder {
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder
}

// duplicateError reports an insert that collided with an existing key.
func duplicateError(err error, resource, id string) error {
	return errors.New(fmt.Errorf("%s %s: %w: %w", resource, id, ErrAlreadyExists, err)).
		Component(componentName).
		Category(errors.CategoryConflict).
		Context("resource", resource).
		Context("identifier", id).
		Build()
}
