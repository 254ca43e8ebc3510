// Package errors provides the application error type used across the Blue Home backend.
// It carries a machine-readable code, a classification kind and the HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeMissingField       Code = "MISSING_FIELD"
	CodeNotFound           Code = "NOT_FOUND"
	CodeCatalogUnavailable Code = "CATALOG_UNAVAILABLE"
	CodeLLMUnavailable     Code = "LLM_UNAVAILABLE"
	CodeDeliveryFailed     Code = "DELIVERY_FAILED"
	CodeSessionStore       Code = "SESSION_STORE"
	CodeDatabase           Code = "DATABASE_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Kind represents the kind of error for classification.
type Kind int

const (
	// KindSystem is a fault on our side: database down, misconfiguration.
	KindSystem Kind = iota
	// KindUser is caused by the request: bad input, unknown property code.
	KindUser
	// KindTransient may succeed on retry.
	KindTransient
)

type codeInfo struct {
	status int
	kind   Kind
}

var codes = map[Code]codeInfo{
	CodeValidation:         {http.StatusBadRequest, KindUser},
	CodeMissingField:       {http.StatusBadRequest, KindUser},
	CodeNotFound:           {http.StatusNotFound, KindUser},
	CodeCatalogUnavailable: {http.StatusServiceUnavailable, KindTransient},
	CodeLLMUnavailable:     {http.StatusBadGateway, KindTransient},
	CodeDeliveryFailed:     {http.StatusBadGateway, KindTransient},
	CodeSessionStore:       {http.StatusInternalServerError, KindSystem},
	CodeDatabase:           {http.StatusInternalServerError, KindSystem},
	CodeInternal:           {http.StatusInternalServerError, KindSystem},
}

// Error is the base application error type.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	// Op is the operation being performed, e.g. "catalog.Load".
	Op  string `json:"-"`
	Err error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// HTTPStatus returns the HTTP status for the error code, 500 when unknown.
func (e *Error) HTTPStatus() int {
	if info, ok := codes[e.Code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func newError(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Message: message, Kind: codes[code].kind, Op: op, Err: err}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return newError(code, "", message, nil)
}

// NotFound creates a not found error for a specific resource.
func NotFound(resource string) *Error {
	return newError(CodeNotFound, "", resource+" not found", nil)
}

// ValidationFailed creates a validation error.
func ValidationFailed(message string) *Error {
	return newError(CodeValidation, "", message, nil)
}

// MissingField creates a missing field validation error.
func MissingField(field string) *Error {
	return newError(CodeMissingField, "", "missing required field: "+field, nil)
}

// DatabaseError wraps a failed query.
func DatabaseError(op string, err error) *Error {
	return newError(CodeDatabase, op, "database operation failed", err)
}

// CatalogUnavailable reports that no property snapshot could be produced.
func CatalogUnavailable(err error) *Error {
	return newError(CodeCatalogUnavailable, "catalog.Load", "property catalog unavailable", err)
}

// LLMUnavailable wraps a failed completion call.
func LLMUnavailable(err error) *Error {
	return newError(CodeLLMUnavailable, "llm.Complete", "language model unavailable", err)
}

// SessionStoreError wraps a failed session read or write.
func SessionStoreError(op string, err error) *Error {
	return newError(CodeSessionStore, op, "session store operation failed", err)
}

// DeliveryFailed wraps a failed outbound messenger delivery.
func DeliveryFailed(channel string, err error) *Error {
	return newError(CodeDeliveryFailed, "", fmt.Sprintf("delivery to %s failed", channel), err)
}

func as(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// GetCode extracts the error code, CodeInternal for non-app errors.
func GetCode(err error) Code {
	if e, ok := as(err); ok {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status, 500 for non-app errors.
func GetHTTPStatus(err error) int {
	if e, ok := as(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsRetriable reports whether err is an app error of KindTransient.
func IsRetriable(err error) bool {
	e, ok := as(err)
	return ok && e.Kind == KindTransient
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// IsUserError checks if an error was caused by the request.
func IsUserError(err error) bool {
	e, ok := as(err)
	return ok && e.Kind == KindUser
}
