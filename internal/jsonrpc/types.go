// ABOUTME: JSON-RPC 2.0 message types exchanged with the editor
// ABOUTME: Implements request, response, and error structures plus the error code enumeration

package jsonrpc

import "encoding/json"

// Request is a decoded call. ID is kept as raw JSON so string, integer and
// null ids are echoed back exactly as received.
type Request struct {
	ID     json.RawMessage
	Method string
	Params *Params
}

// IsNotification reports whether the request carries a null id. Such requests
// are still answered.
func (r *Request) IsNotification() bool {
	return isNull(r.ID)
}

type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an error object. Data may be nil.
func NewError(code int, message string, data map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewResult builds a successful response.
func NewResult(id json.RawMessage, result json.RawMessage) *Response {
	return &Response{ID: id, Result: result}
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{ID: id, Error: err}
}

// Error codes. The -32000 range carries the server specific codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// FatalServerError indicates a bug in the server itself, something
	// that should never have happened.
	FatalServerError = -32000

	// RuntimeError indicates that execution stopped on an expected error
	// condition.
	RuntimeError = -32001
)

var nullID = json.RawMessage("null")

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
