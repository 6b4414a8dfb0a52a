// ABOUTME: JSON-RPC application that runs one request/response cycle per call
// ABOUTME: Extracts session fields, dispatches the command and converts every failure into an error response

package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/harper/php-integrator/internal/command"
	apperrors "github.com/harper/php-integrator/internal/errors"
	"github.com/harper/php-integrator/internal/jsonrpc"
	"github.com/harper/php-integrator/internal/logger"
)

// Parameters consumed by the application and never forwarded to commands.
const (
	ParamStdinData    = "stdinData"
	ParamProjectName  = "projectName"
	ParamDatabase     = "database"
	ParamDatabaseFile = "databaseFile"
)

// StdinBuffer is the simulated standard input of a connection.
type StdinBuffer interface {
	io.Reader
	Replace(data string) error
}

// Application handles the requests of one connection, one at a time. The
// session fields it holds are overwritten by every request.
type Application struct {
	dispatcher *command.Dispatcher
	stdin      StdinBuffer
	log        *logger.Logger

	projectName  string
	databaseFile string
}

func New(dispatcher *command.Dispatcher, stdin StdinBuffer, log *logger.Logger) *Application {
	if log == nil {
		log = logger.Prefixed("app")
	}
	return &Application{
		dispatcher: dispatcher,
		stdin:      stdin,
		log:        log,
	}
}

func (a *Application) ProjectName() string {
	return a.projectName
}

func (a *Application) DatabaseFile() string {
	return a.databaseFile
}

func (a *Application) Stdin() io.Reader {
	if a.stdin == nil {
		return strings.NewReader("")
	}
	return a.stdin
}

// Close releases the stdin buffer when it holds resources.
func (a *Application) Close() error {
	if c, ok := a.stdin.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// HandlePayload decodes a frame body and handles it. A body that cannot be
// decoded still gets an error response, with the id recovered when possible.
func (a *Application) HandlePayload(ctx context.Context, payload []byte) *jsonrpc.Response {
	req, err := jsonrpc.Decode(payload)
	if err != nil {
		malformed := apperrors.NewMalformedRequestError("Malformed request content received: "+err.Error(), err)
		a.log.Warn("%v", malformed)
		return jsonrpc.NewErrorResponse(jsonrpc.PeekID(payload), malformed.ToJSONRPCError())
	}
	return a.Handle(ctx, req)
}

// Handle never panics and never returns nil; every failure ends up in the
// response's error field.
func (a *Application) Handle(ctx context.Context, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	if req == nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(jsonrpc.InvalidRequest, "Empty request", nil))
	}
	id := req.ID

	defer func() {
		if r := recover(); r != nil {
			rpcErr := panicToJSONRPCError(r)
			a.log.Error("command %q panicked: %s %v", req.Method, rpcErr.Message, rpcErr.Data)
			resp = jsonrpc.NewErrorResponse(id, rpcErr)
		}
	}()

	result, err := a.handleRequest(ctx, req)
	if err != nil {
		rpcErr := a.toJSONRPCError(req.Method, err)
		return jsonrpc.NewErrorResponse(id, rpcErr)
	}

	raw, err := jsonrpc.MarshalResult(result)
	if err != nil {
		a.log.Error("command %q returned an unencodable result: %v", req.Method, err)
		return jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.InternalError,
			fmt.Sprintf("Failed to encode result: %v", err), nil))
	}

	return jsonrpc.NewResult(id, raw)
}

func (a *Application) handleRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	params := jsonrpc.NewParams()
	if req.Params != nil {
		params = req.Params.Clone()
	}

	stdinData, hasStdin, err := params.String(ParamStdinData)
	if err != nil {
		return nil, apperrors.NewMalformedRequestError("Malformed request content received (expected 'stdinData' to be a string)", err)
	}
	if hasStdin {
		if a.stdin == nil {
			return nil, fmt.Errorf("no stdin buffer available for this connection")
		}
		if err := a.stdin.Replace(stdinData); err != nil {
			return nil, err
		}
	}

	projectName, ok, err := params.String(ParamProjectName)
	if err != nil || !ok {
		return nil, apperrors.NewMissingProjectNameError()
	}
	a.projectName = projectName

	for _, key := range []string{ParamDatabase, ParamDatabaseFile} {
		databaseFile, ok, err := params.String(key)
		if err != nil {
			return nil, apperrors.NewMalformedRequestError(
				fmt.Sprintf("Malformed request content received (expected '%s' to be a string)", key), err)
		}
		if ok {
			a.databaseFile = databaseFile
		}
	}

	for _, key := range []string{ParamStdinData, ParamProjectName, ParamDatabase, ParamDatabaseFile} {
		params.Delete(key)
	}

	h, err := a.dispatcher.Resolve(req.Method)
	if err != nil {
		return nil, err
	}

	a.log.Debug("dispatching %q for project %q", req.Method, projectName)
	return a.dispatcher.Invoke(ctx, h, a, params)
}

func (a *Application) toJSONRPCError(method string, err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}

	var convertible apperrors.JSONRPCConvertible
	if stderrors.As(err, &convertible) {
		a.log.Debug("request for %q rejected: %v", method, err)
		return convertible.ToJSONRPCError()
	}

	var data map[string]interface{}
	if file, line, ok := errorOrigin(err); ok {
		data = map[string]interface{}{"file": file, "line": line}
	}
	a.log.Error("command %q failed: %v", method, err)
	return jsonrpc.NewError(jsonrpc.RuntimeError, err.Error(), data)
}

func panicToJSONRPCError(r interface{}) *jsonrpc.Error {
	message := fmt.Sprint(r)
	if err, ok := r.(error); ok {
		message = err.Error()
	}

	var data map[string]interface{}
	if file, line, ok := panicOrigin(); ok {
		data = map[string]interface{}{"file": file, "line": line}
	}
	return jsonrpc.NewError(jsonrpc.FatalServerError, message, data)
}
