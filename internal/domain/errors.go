package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeIncompleteSetup Code = "INCOMPLETE_SETUP"
	CodeUpstream        Code = "UPSTREAM_ERROR"
	CodeConsistencyRisk Code = "CONSISTENCY_RISK"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error is the classified failure surfaced by the engine and its collaborators.
// Status and Body are only set for upstream failures.
type Error struct {
	Code    Code
	Message string
	Service string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code == CodeUpstream && e.Status > 0:
		return fmt.Sprintf("%s: upstream %s returned %d: %s", e.Code, e.Service, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match classified not-found errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func IncompleteSetup(format string, args ...any) *Error {
	return &Error{Code: CodeIncompleteSetup, Message: fmt.Sprintf(format, args...)}
}

func Upstream(service string, status int, body string, cause error) *Error {
	msg := body
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeUpstream, Service: service, Status: status, Body: body, Message: msg, Err: cause}
}

func ConsistencyRisk(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeConsistencyRisk, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Classify returns the taxonomy code for any error. Unclassified errors are internal.
func Classify(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}

// HTTPStatus is the status an API caller should see for err.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeIncompleteSetup:
		return http.StatusBadRequest
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UpstreamStatus returns the status code carried by an upstream error, or 0.
func UpstreamStatus(err error) int {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeUpstream {
		return de.Status
	}
	return 0
}
