// pkg/service/errors.go
package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError is returned when an endpoint or definition id does not resolve.
type NotFoundError struct {
	Kind string // "endpoint" | "definition"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SerializationError means the result could not be encoded in the negotiated format.
type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// UnsupportedFormatError means the request declared a format that cannot be produced.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

// DomainError is raised by a definition's ProcessRequest. Status is the HTTP
// status the definition maps it to.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError is shorthand for a DomainError without a cause.
func NewDomainError(status int, code, message string) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message}
}

// BindError means a request attribute could not become a context value.
type BindError struct {
	ContextID string
	Err       error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("context %q: %v", e.ContextID, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// StatusOf maps an error from the pipeline to its HTTP status.
func StatusOf(err error) int {
	var (
		nf *NotFoundError
		se *SerializationError
		ue *UnsupportedFormatError
		de *DomainError
		be *BindError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &de):
		if de.Status >= 400 && de.Status <= 599 {
			return de.Status
		}
		return http.StatusInternalServerError
	case errors.As(err, &nf), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ue):
		return http.StatusNotAcceptable
	case errors.As(err, &be):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// CodeOf returns a short machine-readable code for an error.
func CodeOf(err error) string {
	var (
		nf *NotFoundError
		se *SerializationError
		ue *UnsupportedFormatError
		de *DomainError
		be *BindError
	)
	switch {
	case errors.As(err, &de):
		return de.Code
	case errors.As(err, &nf):
		return nf.Kind + "_not_found"
	case errors.As(err, &ue):
		return "not_acceptable"
	case errors.As(err, &be):
		return "invalid_argument"
	case errors.As(err, &se):
		return "serialization_failed"
	}
	return "internal_error"
}

// MessageOf returns the client-facing message for an error. Unclassified
// errors are not echoed back.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if StatusOf(err) == http.StatusInternalServerError && CodeOf(err) == "internal_error" {
		return http.StatusText(http.StatusInternalServerError)
	}
	return err.Error()
}
