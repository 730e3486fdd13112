package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors shared by the store packages.
var (
	ErrValidation = errors.New("validation error")
	ErrNoChanges  = errors.New("no changes to update")
)

// MaxDescriptionLen bounds event and organizer descriptions, in characters.
const MaxDescriptionLen = 250

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FieldMessages renders one notification line per field error.
func (e *ValidationError) FieldMessages() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field+": "+fe.Message)
	}
	return out
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// CheckDescription appends an error when s, trimmed of surrounding
// whitespace, exceeds MaxDescriptionLen characters.
func CheckDescription(errs []FieldError, field, s string) []FieldError {
	if utf8.RuneCountInString(strings.TrimSpace(s)) > MaxDescriptionLen {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("max %d characters", MaxDescriptionLen)})
	}
	return errs
}
