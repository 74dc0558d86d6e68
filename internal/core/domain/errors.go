package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindConfiguration       ErrorKind = "configuration"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamProtocol    ErrorKind = "upstream_protocol"
	KindUpstreamRejected    ErrorKind = "upstream_rejected"
	KindRetryExhausted      ErrorKind = "retry_exhausted"
	KindMaterialization     ErrorKind = "materialization"
)

// Error is the failure type returned across the core boundary. Message is user-facing.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Class   FailureClass
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusBadRequest}
}

func NewConfigurationError(credential string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("%s not configured. Please add it to .env file", credential),
		Status:  http.StatusInternalServerError,
	}
}

func NewUnavailableError(provider string) *Error {
	return &Error{
		Kind:    KindUpstreamUnavailable,
		Message: fmt.Sprintf("Cannot connect to %s service. Please try again later.", provider),
		Status:  http.StatusServiceUnavailable,
		Class:   FailureConnection,
	}
}

func NewTimeoutError(provider string) *Error {
	return &Error{
		Kind:    KindUpstreamTimeout,
		Message: fmt.Sprintf("Request to %s timed out. Please try again.", provider),
		Status:  http.StatusGatewayTimeout,
		Class:   FailureReadTimeout,
	}
}

func NewProtocolError(message string) *Error {
	return &Error{Kind: KindUpstreamProtocol, Message: message, Status: http.StatusInternalServerError}
}

func NewRejectedError(message string, class FailureClass) *Error {
	return &Error{Kind: KindUpstreamRejected, Message: message, Status: http.StatusInternalServerError, Class: class}
}

// NewRetryExhaustedError keeps the status of the last observed classification.
func NewRetryExhaustedError(provider string, class FailureClass, attempts int) *Error {
	e := &Error{Kind: KindRetryExhausted, Status: http.StatusInternalServerError, Class: class}

	switch class {
	case FailureRateLimited:
		e.Status = http.StatusTooManyRequests
		e.Message = fmt.Sprintf("%s is rate limiting requests, please retry later.", provider)
	default:
		e.Message = fmt.Sprintf("%s failed after %d attempts, please retry later.", provider, attempts)
	}

	return e
}

func NewMaterializationError(message string) *Error {
	return &Error{Kind: KindMaterialization, Message: message, Status: http.StatusInternalServerError}
}

// StatusOf returns the HTTP status for err, 500 for anything that is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}

	return http.StatusInternalServerError
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}

	return "Internal server error"
}

// KindOf returns the kind of err, or an empty kind for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// ErrorField extracts the provider "error" member, accepting a plain string or an object with a "message".
func ErrorField(body []byte) (string, bool) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return "", false
	}

	var message string
	if err := json.Unmarshal(envelope.Error, &message); err == nil {
		return message, message != ""
	}

	var object struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &object); err == nil && object.Message != "" {
		return object.Message, true
	}

	return "", false
}
