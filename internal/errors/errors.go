// Package errors provides shared error types for the Redmine API client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFoundError indicates an entity does not exist on the Redmine server.
type NotFoundError struct {
	EntityType string // "project", "wiki", "wiki_page", "attachment"
	Identifier string // project identifier, page title or URL
}

func (e *NotFoundError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("%s not found: %s", e.EntityType, e.Identifier)
	}
	return fmt.Sprintf("not found: %s", e.Identifier)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entityType, identifier string) *NotFoundError {
	return &NotFoundError{
		EntityType: entityType,
		Identifier: identifier,
	}
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value (may be empty for sensitive data)
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// AuthError is returned when the server rejects the configured credentials:
// any 401, and a 403 on a request every user may make. It is fatal for an
// export run.
type AuthError struct {
	URL        string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (%d %s) for %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// StatusError is returned for non-2xx responses that are not auth failures,
// including a 403 on a resource the user may not see.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // truncated response body
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// DecodeError is returned when a response body is not the expected JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a NotFoundError or a 404 StatusError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth returns true if the error is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsStatus returns true if the error is a StatusError.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// IsDecode returns true if the error is a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsUnusableResponse reports whether err means the server answered but the
// answer cannot be used: a decode failure, a non-auth status error or a
// missing entity. Callers substitute an empty result for these.
func IsUnusableResponse(err error) bool {
	return IsDecode(err) || IsStatus(err) || IsNotFound(err)
}
