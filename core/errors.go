package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	flds := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

// ConflictError reports that a write clashes with an existing record:
// overlapping time slots, a double-booked teacher, a duplicated natural key...
type ConflictError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func NewConflictError(entity, id, field, msg string) error {
	return &ConflictError{Entity: entity, ID: id, Field: field, Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

// NotFoundError is returned by repositories when the requested record does not exist.
// Each domain declares its own sentinel, e.g: `ErrTermNotFound = core.NewNotFoundError("term")`.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsConflictError(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// ClientErrorFields flattens a validation, conflict or not-found error into a field map,
// as reported per item by bulk operations. ok is false for any other error.
func ClientErrorFields(err error) (map[string]string, bool) {
	switch e := errors.Cause(err).(type) {
	case *ValidationError:
		return e.FieldMap(), true
	case *ConflictError:
		field := e.Field
		if field == "" {
			field = "non_field_errors"
		}
		return map[string]string{field: e.Message}, true
	case *NotFoundError:
		return map[string]string{"non_field_errors": e.Error()}, true
	}
	return nil, false
}
