// ABOUTME: Command-line client that sends one request to a running integrator and prints the response
// ABOUTME: Handy for probing a server from a shell or an editor integration script

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harper/php-integrator/internal/client"
	"github.com/harper/php-integrator/internal/jsonrpc"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9999", "server TCP address")
	socket := flag.String("socket", "", "unix socket path (overrides -addr)")
	project := flag.String("project", "", "projectName sent with the request")
	database := flag.String("database", "", "database file sent with the request")
	stdinFile := flag.String("stdin", "", "file whose contents are sent as stdinData (- for standard input)")
	rawParams := flag.String("params", "{}", "additional params as a JSON object")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	maxResponse := flag.Int("max-response", client.DefaultMaxResponseLength, "largest response body accepted, in bytes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <method>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	code, err := run(flag.Arg(0), *addr, *socket, *project, *database, *stdinFile, *rawParams, *timeout, *maxResponse)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func buildParams(project, database, stdinFile, rawParams string) (*jsonrpc.Params, error) {
	params, err := jsonrpc.ParseParams([]byte(rawParams))
	if err != nil {
		return nil, fmt.Errorf("invalid -params: %w", err)
	}
	if project != "" {
		if err := params.Set("projectName", project); err != nil {
			return nil, err
		}
	}
	if database != "" {
		if err := params.Set("database", database); err != nil {
			return nil, err
		}
	}
	if stdinFile != "" {
		var data []byte
		if stdinFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(stdinFile) //nolint:gosec // user-selected input file
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin data: %w", err)
		}
		if err := params.Set("stdinData", string(data)); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func run(method, addr, socket, project, database, stdinFile, rawParams string, timeout time.Duration, maxResponse int) (int, error) {
	params, err := buildParams(project, database, stdinFile, rawParams)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	network, address := "tcp", addr
	if socket != "" {
		network, address = "unix", socket
	}
	c, err := client.Dial(ctx, network, address, maxResponse)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return 0, err
	}

	body, err := jsonrpc.Encode(resp)
	if err != nil {
		return 0, err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return 0, err
	}
	fmt.Println(pretty.String())

	if resp.Error != nil {
		return 3, nil
	}
	return 0, nil
}
