// Package errs provides the coded error type shared by the wallet session,
// connectors and the mutation coordinator. Codes let the UI tell a wallet
// rejection apart from an invalid field or a failed remote call.
package errs

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeConnectorNotFound     Code = "CONNECTOR_NOT_FOUND"
	CodeHandshakeRejected     Code = "HANDSHAKE_REJECTED"
	CodeHandshakeTimeout      Code = "HANDSHAKE_TIMEOUT"
	CodeSuperseded            Code = "SUPERSEDED"
	CodeChainSwitchRejected   Code = "CHAIN_SWITCH_REJECTED"
	CodeNotConnected          Code = "NOT_CONNECTED"
	CodeRemoteCallFailed      Code = "REMOTE_CALL_FAILED"
	CodePreconditionViolation Code = "PRECONDITION_VIOLATION"
)

// Sentinels for errors.Is checks. Matching is by code, so any *Error with the
// same code compares equal.
var (
	ErrConnectorNotFound     = New(CodeConnectorNotFound, "connector not found")
	ErrHandshakeRejected     = New(CodeHandshakeRejected, "handshake rejected by wallet")
	ErrHandshakeTimeout      = New(CodeHandshakeTimeout, "handshake timed out")
	ErrSuperseded            = New(CodeSuperseded, "superseded by a newer request")
	ErrChainSwitchRejected   = New(CodeChainSwitchRejected, "chain switch rejected")
	ErrNotConnected          = New(CodeNotConnected, "wallet not connected")
	ErrRemoteCallFailed      = New(CodeRemoteCallFailed, "remote call failed")
	ErrPreconditionViolation = New(CodePreconditionViolation, "precondition violated")
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Field returns the offending field for precondition violations.
func (e *Error) Field() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata["field"]
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Precondition builds a PreconditionViolation naming the invalid field.
func Precondition(field, message string) *Error {
	return &Error{
		Code:     CodePreconditionViolation,
		Message:  message,
		Metadata: map[string]string{"field": field},
	}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HTTPStatus maps a code to the status the API server responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeConnectorNotFound:
		return http.StatusNotFound
	case CodePreconditionViolation:
		return http.StatusUnprocessableEntity
	case CodeHandshakeRejected, CodeChainSwitchRejected, CodeSuperseded, CodeNotConnected:
		return http.StatusConflict
	case CodeHandshakeTimeout:
		return http.StatusGatewayTimeout
	case CodeRemoteCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
