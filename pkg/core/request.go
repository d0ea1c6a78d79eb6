package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an insertion-ordered list of query parameters. The order is the
// order the parameters are transmitted and signed in.
type Params []Param

// Add appends key=value, formatting the value with formatValue.
func (p *Params) Add(key string, value any) *Params {
	*p = append(*p, Param{Key: key, Value: formatValue(value)})
	return p
}

// Get returns the first value stored under key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns the parameter keys in insertion order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, param := range p {
		keys[i] = param.Key
	}
	return keys
}

// Clone returns a copy that can be extended without touching p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// Encode serializes the parameters as key=value pairs joined by '&', in
// insertion order, with keys and values URL-encoded.
func (p Params) Encode() string {
	var sb strings.Builder
	for i, param := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}
	return sb.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Request describes one REST call against the exchange.
type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  Params `json:"query,omitempty"`
	// Weight is the request weight charged by the exchange.
	Weight int `json:"weight"`
	// Signed requests carry a timestamp and signature.
	Signed bool `json:"signed"`
}

// NewRequest creates a request with weight 1.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Weight: 1,
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	r.Query.Add(key, value)
	return r
}

func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

func (r *Request) SetSigned(signed bool) *Request {
	r.Signed = signed
	return r
}
