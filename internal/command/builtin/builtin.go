// ABOUTME: Diagnostic commands that ship with the server
// ABOUTME: Used by editors to probe the connection and by tests to exercise the session environment

package builtin

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/harper/php-integrator/internal/command"
	apperrors "github.com/harper/php-integrator/internal/errors"
	"github.com/harper/php-integrator/internal/jsonrpc"
)

// Version is reported by sessionInfo.
var Version = "dev"

// Register adds the built-in commands to reg.
func Register(reg *command.MapRegistry) error {
	commands := map[string]command.Handler{
		"ping":        command.HandlerFunc(ping),
		"echo":        command.HandlerFunc(echo),
		"sessionInfo": command.HandlerFunc(sessionInfo),
	}
	for method, h := range commands {
		if err := reg.Register(method, h); err != nil {
			return err
		}
	}
	return nil
}

func ping(ctx context.Context, env command.Environment, params *jsonrpc.Params) (interface{}, error) {
	return "pong", nil
}

// echo returns the parameters it received, in order.
func echo(ctx context.Context, env command.Environment, params *jsonrpc.Params) (interface{}, error) {
	if params == nil {
		return jsonrpc.NewParams(), nil
	}
	return params, nil
}

type SessionInfo struct {
	ProjectName  string `json:"projectName"`
	DatabaseFile string `json:"databaseFile,omitempty"`
	StdinLength  int    `json:"stdinLength"`
	Stdin        string `json:"stdin,omitempty"`
	Version      string `json:"version"`
}

// sessionInfo reports the session fields and drains the simulated stdin.
// Pass includeStdin=true to get the stdin content back.
func sessionInfo(ctx context.Context, env command.Environment, params *jsonrpc.Params) (interface{}, error) {
	includeStdin := false
	if params != nil {
		if raw, ok := params.Get("includeStdin"); ok {
			if err := json.Unmarshal(raw, &includeStdin); err != nil {
				return nil, apperrors.NewInvalidArgumentsError("includeStdin must be a boolean")
			}
		}
	}

	data, err := io.ReadAll(env.Stdin())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stdin")
	}

	info := SessionInfo{
		ProjectName:  env.ProjectName(),
		DatabaseFile: env.DatabaseFile(),
		StdinLength:  len(data),
		Version:      Version,
	}
	if includeStdin {
		info.Stdin = string(data)
	}
	return info, nil
}
