package core

import "net/http"

// Operation is one REST endpoint of the futures API.
type Operation int

// Operation constants cover every endpoint the client calls.
const (
	OpGetBalance Operation = iota
	OpGetContracts
	OpGetCandles
	OpGetBookTicker
	OpPlaceOrder
	OpCancelOrder
	OpGetOrder
)

type endpoint struct {
	name   string
	method string
	path   string
	weight int
	signed bool
}

var endpoints = [...]endpoint{
	{"GET_BALANCE", http.MethodGet, "/fapi/v1/account", 5, true},
	{"GET_CONTRACTS", http.MethodGet, "/fapi/v1/exchangeInfo", 1, false},
	{"GET_CANDLES", http.MethodGet, "/fapi/v1/klines", 5, false},
	{"GET_BOOK_TICKER", http.MethodGet, "/fapi/v1/ticker/bookTicker", 2, false},
	{"PLACE_ORDER", http.MethodPost, "/fapi/v1/order", 1, true},
	{"CANCEL_ORDER", http.MethodDelete, "/fapi/v1/order", 1, true},
	{"GET_ORDER", http.MethodGet, "/fapi/v1/order", 1, true},
}

// String returns the string representation of the operation.
func (o Operation) String() string {
	return endpoints[o].name
}

// Method returns the HTTP method of the endpoint.
func (o Operation) Method() string { return endpoints[o].method }

// Path returns the endpoint path relative to the REST base URL.
func (o Operation) Path() string { return endpoints[o].path }

// Signed reports whether the endpoint requires a timestamp and signature.
func (o Operation) Signed() bool { return endpoints[o].signed }

// NewRequest builds a request for the operation with its method, path, weight and auth flag.
func (o Operation) NewRequest() *Request {
	e := endpoints[o]
	return NewRequest(e.method, e.path).SetWeight(e.weight).SetSigned(e.signed)
}
