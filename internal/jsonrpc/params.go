// ABOUTME: Order-preserving parameter mapping carried by a request
// ABOUTME: Values stay as raw JSON until a command decodes the ones it needs

package jsonrpc

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params holds the request parameters in the order the client sent them.
type Params struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

func NewParams() *Params {
	return &Params{m: orderedmap.New[string, json.RawMessage]()}
}

// ParseParams decodes a JSON object. Anything other than an object fails.
func ParseParams(data []byte) (*Params, error) {
	p := NewParams()
	if err := p.m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Params) Len() int {
	return p.m.Len()
}

func (p *Params) Has(key string) bool {
	_, ok := p.m.Get(key)
	return ok
}

// Get returns the raw value for key.
func (p *Params) Get(key string) (json.RawMessage, bool) {
	return p.m.Get(key)
}

// Set stores a value, marshalling it to JSON first.
func (p *Params) Set(key string, value interface{}) error {
	raw, err := marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal param %q: %w", key, err)
	}
	p.m.Set(key, raw)
	return nil
}

func (p *Params) Delete(key string) {
	p.m.Delete(key)
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// String returns the value of key when it is present and a JSON string.
// A present but null value counts as absent.
func (p *Params) String(key string) (string, bool, error) {
	raw, ok := p.m.Get(key)
	if !ok || isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("param %q must be a string", key)
	}
	return s, true, nil
}

// Decode unmarshals the value of key into v.
func (p *Params) Decode(key string, v interface{}) error {
	raw, ok := p.m.Get(key)
	if !ok {
		return fmt.Errorf("param %q is missing", key)
	}
	return json.Unmarshal(raw, v)
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	c := NewParams()
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		c.m.Set(pair.Key, pair.Value)
	}
	return c
}

func (p *Params) MarshalJSON() ([]byte, error) {
	return p.m.MarshalJSON()
}
