package entity

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoCredential means the user never granted offline access to the
	// destination integration and has to re-authorize.
	ErrNoCredential = errors.New("no refresh token")
	ErrMissingJobID = errors.New("missing taskId")
)

// ValidationError is an input problem detected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InvalidAddressError names the token that failed to parse as a URL.
func InvalidAddressError(token string) *ValidationError {
	return &ValidationError{Field: "url_string", Message: fmt.Sprintf("%q is not a valid URL", token)}
}

// AddressShapeError is raised when an address belongs to a known site but
// none of that site's path shapes.
type AddressShapeError struct {
	Address string
	Message string
}

func (e *AddressShapeError) Error() string {
	if e.Address == "" {
		return e.Message
	}
	return e.Message + ": " + e.Address
}

// FetchError wraps an upstream failure with the address being fetched.
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "min":
		return &ValidationError{Field: field, Message: "must not be empty"}
	case "gt":
		return &ValidationError{Field: field, Message: "must be a positive integer"}
	case "url":
		return &ValidationError{Field: field, Message: "Invalid URL format"}
	default:
		return &ValidationError{Field: field, Message: "failed " + fe.Tag() + " check"}
	}
}
