// ABOUTME: Resolves JSON-RPC method names to commands and invokes them
// ABOUTME: Command failures pass through untouched; translation happens in the application

package command

import (
	"context"

	"github.com/harper/php-integrator/internal/errors"
	"github.com/harper/php-integrator/internal/jsonrpc"
)

type Dispatcher struct {
	registry Registry
}

func NewDispatcher(registry Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Resolve finds the command registered as method + "Command".
func (d *Dispatcher) Resolve(method string) (Handler, error) {
	h, ok := d.registry.Lookup(method + Suffix)
	if !ok {
		return nil, errors.NewMethodNotFoundError(method)
	}
	return h, nil
}

// Invoke runs h and returns its result or error unchanged.
func (d *Dispatcher) Invoke(ctx context.Context, h Handler, env Environment, params *jsonrpc.Params) (interface{}, error) {
	return h.Execute(ctx, env, params)
}
