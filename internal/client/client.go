// ABOUTME: Minimal client that speaks the Content-Length framed JSON-RPC protocol
// ABOUTME: Used by the command-line client and by end-to-end tests

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/jsonrpc"
)

// DefaultMaxResponseLength bounds the body size accepted from the server.
// Responses are not held to the server's inbound limit.
const DefaultMaxResponseLength = 1 << 30

type Client struct {
	conn    net.Conn
	decoder *framing.Decoder
	pending [][]byte
	nextID  int64
	broken  error
	mu      sync.Mutex
}

// Dial connects over "tcp" or "unix". maxResponseLength <= 0 means
// DefaultMaxResponseLength.
func Dial(ctx context.Context, network, address string, maxResponseLength int) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s %s: %w", network, address, err)
	}
	return NewWithLimit(conn, maxResponseLength), nil
}

func New(conn net.Conn) *Client {
	return NewWithLimit(conn, DefaultMaxResponseLength)
}

func NewWithLimit(conn net.Conn, maxResponseLength int) *Client {
	if maxResponseLength <= 0 {
		maxResponseLength = DefaultMaxResponseLength
	}
	return &Client{conn: conn, decoder: framing.NewDecoder(maxResponseLength)}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and waits for its response. Calls on one client are
// serialized. Late answers to earlier calls that gave up on their context are
// read and discarded.
func (c *Client) Call(ctx context.Context, method string, params *jsonrpc.Params) (*jsonrpc.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, fmt.Errorf("connection unusable: %w", c.broken)
	}

	c.nextID++
	id, _ := json.Marshal(c.nextID)
	body, err := jsonrpc.EncodeRequest(&jsonrpc.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	// ctx.Err is always set by the time the deadline interrupts I/O
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	defer stop()

	if err := framing.WriteFrame(c.conn, body); err != nil {
		// A partial frame leaves the stream out of sync
		c.broken = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	for {
		payload, err := c.readPayload()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		resp, err := jsonrpc.DecodeResponse(payload)
		if err != nil {
			return nil, err
		}
		// A null id means the server could not read ours back
		if string(resp.ID) != string(id) && string(resp.ID) != "null" {
			continue
		}
		return resp, nil
	}
}

func (c *Client) readPayload() ([]byte, error) {
	buf := make([]byte, 32<<10)
	for len(c.pending) == 0 {
		n, err := c.conn.Read(buf)
		if n > 0 {
			payloads, ferr := c.decoder.Feed(buf[:n])
			c.pending = append(c.pending, payloads...)
			if ferr != nil {
				return nil, fmt.Errorf("bad frame from server: %w", ferr)
			}
		}
		if err != nil && len(c.pending) == 0 {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
	}
	payload := c.pending[0]
	c.pending = c.pending[1:]
	return payload, nil
}
