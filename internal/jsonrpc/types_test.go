package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	data := []byte(`{
		"jsonrpc": "2.0",
		"method": "semanticLint",
		"params": {"projectName": "demo", "file": "/tmp/a.php", "database": "/tmp/db"},
		"id": 1
	}`)

	req, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "semanticLint", req.Method)
	assert.Equal(t, json.RawMessage("1"), req.ID)
	assert.False(t, req.IsNotification())
	assert.Equal(t, []string{"projectName", "file", "database"}, req.Params.Keys())

	name, ok, err := req.Params.String("projectName")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "demo", name)
}

func TestDecodeRequestIDShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"integer", `{"id":7,"method":"m","params":{}}`, `7`},
		{"string", `{"id":"abc","method":"m","params":{}}`, `"abc"`},
		{"null", `{"id":null,"method":"m","params":{}}`, `null`},
		{"absent", `{"method":"m","params":{}}`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(req.ID))
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"id":1,`},
		{"not an object", `[1,2,3]`},
		{"missing method", `{"id":1,"params":{}}`},
		{"empty method", `{"id":1,"method":"","params":{}}`},
		{"numeric method", `{"id":1,"method":5,"params":{}}`},
		{"missing params", `{"id":1,"method":"m"}`},
		{"null params", `{"id":1,"method":"m","params":null}`},
		{"array params", `{"id":1,"method":"m","params":["a"]}`},
		{"string params", `{"id":1,"method":"m","params":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRequest), "got %v", err)
		})
	}
}

func TestDecodeRejectsUnsupportedIDShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"id":{"a":1},"method":"m","params":{}}`},
		{"array", `{"id":[1],"method":"m","params":{}}`},
		{"boolean", `{"id":true,"method":"m","params":{}}`},
		{"fraction", `{"id":1.5,"method":"m","params":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRequest)
			require.NotNil(t, req)
			assert.Equal(t, `null`, string(req.ID))
			assert.Equal(t, `null`, string(PeekID([]byte(tt.body))))
		})
	}
}

func TestPeekID(t *testing.T) {
	assert.Equal(t, `4`, string(PeekID([]byte(`{"id":4,"method":""}`))))
	assert.Equal(t, `"a"`, string(PeekID([]byte(`{"id":"a","params":1}`))))
	assert.Equal(t, `null`, string(PeekID([]byte(`garbage`))))
	assert.Equal(t, `null`, string(PeekID([]byte(`{"method":"x"}`))))
}

func TestEncodeKeepsMarkupLiteral(t *testing.T) {
	result, err := MarshalResult(map[string]string{"code": "<?php $a->b && $c => 1;"})
	require.NoError(t, err)
	assert.Equal(t, `{"code":"<?php $a->b && $c => 1;"}`, string(result))

	data, err := Encode(NewResult(json.RawMessage("1"), result))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"result":{"code":"<?php $a->b && $c => 1;"},"error":null}`, string(data))
	assert.NotContains(t, string(data), `\u003c`)

	data, err = Encode(NewErrorResponse(json.RawMessage("2"), NewError(RuntimeError, "unexpected '<'", nil)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"unexpected '<'"`)
	assert.NotEqual(t, byte('\n'), data[len(data)-1])
}

func TestEncodeAlwaysEmitsAllFields(t *testing.T) {
	data, err := Encode(NewResult(json.RawMessage("1"), nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"result":null,"error":null}`, string(data))

	data, err = Encode(&Response{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"result":null,"error":null}`, string(data))

	data, err = Encode(NewErrorResponse(json.RawMessage(`"x"`), NewError(InvalidParams, "bad", nil)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","result":null,"error":{"code":-32602,"message":"bad"}}`, string(data))
}

func TestEncodeDropsResultWhenErrorSet(t *testing.T) {
	resp := &Response{
		ID:     json.RawMessage("2"),
		Result: json.RawMessage(`{"a":1}`),
		Error:  NewError(RuntimeError, "boom", nil),
	}

	data, err := Encode(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"result":null,"error":{"code":-32001,"message":"boom"}}`, string(data))
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []*Response{
		NewResult(json.RawMessage("1"), json.RawMessage(`{"types":["\\Foo","int"],"nested":{"x":[1,2,null]}}`)),
		NewResult(json.RawMessage(`"req-9"`), json.RawMessage(`"plain string"`)),
		NewResult(json.RawMessage("null"), json.RawMessage(`[]`)),
		NewErrorResponse(json.RawMessage("3"), NewError(RuntimeError, "failed", map[string]interface{}{
			"line": float64(12),
			"file": "/src/handler.go",
		})),
		NewErrorResponse(json.RawMessage("4"), NewError(FatalServerError, "panic", nil)),
	}

	for _, original := range responses {
		encoded, err := Encode(original)
		require.NoError(t, err)

		decoded, err := DecodeResponse(encoded)
		require.NoError(t, err)

		reencoded, err := Encode(decoded)
		require.NoError(t, err)
		assert.JSONEq(t, string(encoded), string(reencoded))

		assert.JSONEq(t, string(original.ID), string(decoded.ID))
		if original.Error != nil {
			require.NotNil(t, decoded.Error)
			assert.Equal(t, original.Error.Code, decoded.Error.Code)
			assert.Equal(t, original.Error.Message, decoded.Error.Message)
			assert.Equal(t, original.Error.Data, decoded.Error.Data)
		} else {
			assert.Nil(t, decoded.Error)
			assert.JSONEq(t, string(original.Result), string(decoded.Result))
		}
	}
}

func TestEncodeRequest(t *testing.T) {
	params := NewParams()
	require.NoError(t, params.Set("projectName", "demo"))
	require.NoError(t, params.Set("offset", 10))

	data, err := EncodeRequest(&Request{ID: json.RawMessage("5"), Method: "ping", Params: params})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":5,"method":"ping","params":{"projectName":"demo","offset":10}}`, string(data))

	req, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"projectName", "offset"}, req.Params.Keys())
}

func TestMarshalResult(t *testing.T) {
	raw, err := MarshalResult(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = MarshalResult(json.RawMessage(" [1, 2] "))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(raw))

	_, err = MarshalResult(json.RawMessage("{"))
	assert.Error(t, err)

	_, err = MarshalResult(make(chan int))
	assert.Error(t, err)
}
