// ABOUTME: Contract between the JSON-RPC layer and the analysis commands it invokes
// ABOUTME: Commands receive the session environment plus the request's remaining params

package command

import (
	"context"
	"io"

	"github.com/harper/php-integrator/internal/jsonrpc"
)

// Suffix is appended to a method name to find its command.
const Suffix = "Command"

// Environment is the per-request session state a command may read.
type Environment interface {
	ProjectName() string
	DatabaseFile() string
	Stdin() io.Reader
}

// Handler executes one command.
//
// A handler rejects bad input by returning an *errors.InvalidArgumentsError.
// Any other error is reported to the client as a runtime failure.
type Handler interface {
	Execute(ctx context.Context, env Environment, params *jsonrpc.Params) (interface{}, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Environment, params *jsonrpc.Params) (interface{}, error)

func (f HandlerFunc) Execute(ctx context.Context, env Environment, params *jsonrpc.Params) (interface{}, error) {
	return f(ctx, env, params)
}

// Registry resolves a command by its registered name.
type Registry interface {
	Lookup(name string) (Handler, bool)
}
