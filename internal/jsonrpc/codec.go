// ABOUTME: Stateless translation between wire JSON and request/response values
// ABOUTME: Encoding always emits id, result and error so clients get a stable shape

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRequest is wrapped by every Decode failure.
var ErrMalformedRequest = errors.New("malformed request")

type wireRequest struct {
	ID     json.RawMessage `json:"id"`
	Method json.RawMessage `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Decode parses a request body.
func Decode(payload []byte) (*Request, error) {
	var wire wireRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: body is not a valid JSON object: %v", ErrMalformedRequest, err)
	}

	req := &Request{ID: wire.ID}
	if isNull(req.ID) {
		req.ID = nullID
	} else if !validID(req.ID) {
		req.ID = nullID
		return req, fmt.Errorf("%w: 'id' must be a string, an integer or null", ErrMalformedRequest)
	}

	if isNull(wire.Method) {
		return req, fmt.Errorf("%w: expected a 'method' field", ErrMalformedRequest)
	}
	if err := json.Unmarshal(wire.Method, &req.Method); err != nil || req.Method == "" {
		return req, fmt.Errorf("%w: 'method' must be a non-empty string", ErrMalformedRequest)
	}

	if isNull(wire.Params) {
		return req, fmt.Errorf("%w: expected a 'params' field", ErrMalformedRequest)
	}
	params, err := ParseParams(wire.Params)
	if err != nil {
		return req, fmt.Errorf("%w: 'params' must be an object", ErrMalformedRequest)
	}
	req.Params = params

	return req, nil
}

// PeekID pulls the id out of a body that failed to decode, so the error
// response can still be correlated. It returns null when nothing usable is
// found.
func PeekID(payload []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || isNull(probe.ID) || !validID(probe.ID) {
		return nullID
	}
	return probe.ID
}

func validID(raw json.RawMessage) bool {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return true
	}
	var n int64
	return json.Unmarshal(raw, &n) == nil
}

// marshal is json.Marshal without HTML escaping, so '<?php' stays literal.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encode serializes a response.
func Encode(resp *Response) ([]byte, error) {
	out := Response{ID: resp.ID, Result: resp.Result, Error: resp.Error}
	if isNull(out.ID) {
		out.ID = nullID
	}
	if out.Error != nil {
		out.Result = nil
	}
	return marshal(out)
}

// EncodeRequest serializes a request. It is used by clients.
func EncodeRequest(req *Request) ([]byte, error) {
	params := req.Params
	if params == nil {
		params = NewParams()
	}
	id := req.ID
	if isNull(id) {
		id = nullID
	}
	return marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Params  *Params         `json:"params"`
	}{"2.0", id, req.Method, params})
}

// DecodeResponse parses a response body.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if isNull(resp.ID) {
		resp.ID = nullID
	}
	if isNull(resp.Result) {
		resp.Result = nil
	}
	return &resp, nil
}

// MarshalResult encodes a command result for use in a response.
func MarshalResult(v interface{}) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("result is not valid JSON")
		}
		return compact(raw), nil
	}
	return marshal(v)
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
