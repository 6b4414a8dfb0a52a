// ABOUTME: Error taxonomy for the framing, request and dispatch layers
// ABOUTME: Each client-visible error knows how to render itself as a JSON-RPC error object

package errors

import (
	"fmt"

	"github.com/harper/php-integrator/internal/jsonrpc"
)

// FramingError reports a broken Content-Length frame. It is never sent to
// the client since no request id exists yet.
type FramingError struct {
	Reason string
}

func NewFramingError(reason string) *FramingError {
	return &FramingError{Reason: reason}
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Reason
}

// MalformedRequestError reports a body that is not a usable request, or one
// that lacks a required session field.
type MalformedRequestError struct {
	Message string
	Cause   error
}

func NewMalformedRequestError(message string, cause error) *MalformedRequestError {
	return &MalformedRequestError{Message: message, Cause: cause}
}

func (e *MalformedRequestError) Error() string {
	return e.Message
}

func (e *MalformedRequestError) Unwrap() error {
	return e.Cause
}

func (e *MalformedRequestError) ToJSONRPCError() *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.InvalidParams, e.Message, nil)
}

// MissingProjectNameMessage is the exact text clients match on.
const MissingProjectNameMessage = "Malformed request content received (expected a 'projectName' field)"

func NewMissingProjectNameError() *MalformedRequestError {
	return NewMalformedRequestError(MissingProjectNameMessage, nil)
}

// MethodNotFoundError reports that no command is registered for a method.
//
// It is rendered as INVALID_PARAMS rather than METHOD_NOT_FOUND; existing
// clients depend on that code.
type MethodNotFoundError struct {
	Method string
}

func NewMethodNotFoundError(method string) *MethodNotFoundError {
	return &MethodNotFoundError{Method: method}
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("Method %q was not found", e.Method)
}

func (e *MethodNotFoundError) ToJSONRPCError() *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.InvalidParams, e.Error(), nil)
}
