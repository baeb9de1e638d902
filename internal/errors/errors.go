// Package errors defines the service error type the HTTP layer maps to status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code classifies a ServiceError.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL"
)

// ServiceError carries a user-facing message and an HTTP status.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Fields     map[string]string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithField records a per-field message and returns e.
func (e *ServiceError) WithField(field, message string) *ServiceError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

func NotFound(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}

func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

func Conflict(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict, Err: err}
}

func RateLimited(message string) *ServiceError {
	return &ServiceError{Code: CodeRateLimited, Message: message, HTTPStatus: http.StatusTooManyRequests}
}

func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries a ServiceError with the given code.
func HasCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	if se := GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
