// ABOUTME: Errors raised by commands while validating their own arguments
// ABOUTME: Rendered to the client as INVALID_PARAMS with the command's message

package errors

import (
	"fmt"

	"github.com/harper/php-integrator/internal/jsonrpc"
)

// InvalidArgumentsError is returned by a command that rejects its input.
type InvalidArgumentsError struct {
	Message string
}

func NewInvalidArgumentsError(format string, args ...interface{}) *InvalidArgumentsError {
	return &InvalidArgumentsError{Message: fmt.Sprintf(format, args...)}
}

func (e *InvalidArgumentsError) Error() string {
	return e.Message
}

func (e *InvalidArgumentsError) ToJSONRPCError() *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.InvalidParams, e.Message, nil)
}

// JSONRPCConvertible is implemented by errors that map directly onto a
// client-visible error object.
type JSONRPCConvertible interface {
	error
	ToJSONRPCError() *jsonrpc.Error
}
