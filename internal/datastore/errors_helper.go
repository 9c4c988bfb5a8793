// Package datastore provides error handling helpers for database operations
package datastore

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tphakala/healthdesk/internal/errors"
)

// Sentinel errors callers match with errors.Is. Their text is what the API
// reports to clients.
var (
	ErrDoctorNotFound      = errors.NewStd("Doctor not found")
	ErrPatientNotFound     = errors.NewStd("Patient not found")
	ErrRecordNotFound      = errors.NewStd("Record not found")
	ErrAppointmentNotFound = errors.NewStd("Not found")
	ErrUserNotFound        = errors.NewStd("User not found")
	ErrTokenNotFound       = errors.NewStd("Invalid or expired token")
	ErrInvalidPatient      = errors.NewStd("Invalid patient")
	ErrInvalidDoctor       = errors.NewStd("Invalid doctor")
	ErrUsernameTaken       = errors.NewStd("Username already exists")
	ErrNotOpen             = errors.NewStd("database connection is not initialized")
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// notFound wraps a sentinel so both errors.Is(err, sentinel) and
// errors.IsNotFound(err) hold.
func notFound(sentinel error, operation string, id any) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation).
		Context("id", fmt.Sprintf("%v", id)).
		Build()
}

// validationError wraps a sentinel describing a rejected reference.
func validationError(sentinel error, field string, value any) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

func conflictError(sentinel error, operation string) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("operation", operation).
		Build()
}

// isUniqueViolation recognizes duplicate key errors from both drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}

// categorizeError maps a driver error onto a low-cardinality metric label.
func categorizeError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case isUniqueViolation(err), strings.Contains(msg, "constraint"):
		return "constraint"
	case strings.Contains(msg, "locked"), strings.Contains(msg, "busy"):
		return "locked"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "broken pipe"):
		return "connection"
	}
	return "other"
}
