package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a failed exchange interaction.
type ErrorType int

// Error type constants classify every failure surfaced by the client.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnection indicates a transport-level fault (DNS, refused, timeout).
	ErrorTypeConnection
	// ErrorTypeClient indicates a caller-correctable 4xx response or an invalid request.
	ErrorTypeClient
	// ErrorTypeUnexpectedStatus indicates any other non-200 response.
	ErrorTypeUnexpectedStatus
	// ErrorTypeSigning indicates the request could not be signed.
	ErrorTypeSigning
	// ErrorTypeParse indicates malformed or incomplete JSON from REST or the stream.
	ErrorTypeParse
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	if t < ErrorTypeUnknown || t > ErrorTypeParse {
		return "unknown"
	}
	return [...]string{
		"unknown",
		"connection_error",
		"client_error",
		"unexpected_status",
		"signing_error",
		"parse_error",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrStreamClosed is returned when attempting to use a closed stream.
	ErrStreamClosed = errors.New("stream is closed")
	// ErrNotConnected is returned when the websocket is not open.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrNoCredentials is returned when no API credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrUnknownContract is returned when a symbol is not in the contract cache.
	ErrUnknownContract = errors.New("unknown contract")
)

// ExchangeError is the structured failure returned by every REST operation.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code, zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`
	// Code is the exchange error code parsed from the response body.
	Code int `json:"code,omitempty"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Field names the missing or malformed JSON field of a parse error.
	Field string `json:"field,omitempty"`
	// Method and Path identify the request that failed.
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	// Err is the underlying fault, if any.
	Err error `json:"-"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	switch {
	case e.Field != "":
		return fmt.Sprintf("%s (field %s): %s", e.Type, e.Field, msg)
	case e.Code != 0:
		return fmt.Sprintf("%s (%d/%d): %s", e.Type, e.StatusCode, e.Code, msg)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Type, msg)
	}
}

// Unwrap returns the underlying fault.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// WithRequest records the method and path of the failed request.
func (e *ExchangeError) WithRequest(method, path string) *ExchangeError {
	e.Method = method
	e.Path = path
	return e
}

// WithCode sets the exchange error code and message parsed from a response body.
func (e *ExchangeError) WithCode(code int, msg string) *ExchangeError {
	e.Code = code
	if msg != "" {
		e.Message = msg
	}
	return e
}

// NewExchangeError creates a new ExchangeError. The timestamp is set to the current time.
func NewExchangeError(errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// NewConnectionError wraps a transport fault.
func NewConnectionError(err error) *ExchangeError {
	e := NewExchangeError(ErrorTypeConnection, 0, "request failed")
	e.Err = err
	return e
}

// NewSigningError reports a request that could not be signed.
func NewSigningError(message string) *ExchangeError {
	return NewExchangeError(ErrorTypeSigning, 0, message)
}

// NewParseError reports a missing or malformed field in an exchange payload.
func NewParseError(field, message string) *ExchangeError {
	e := NewExchangeError(ErrorTypeParse, 0, message)
	e.Field = field
	return e
}

// IsErrorType reports whether err is an ExchangeError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsConnectionError returns true if the error is a transport-level fault.
func IsConnectionError(err error) bool {
	return IsErrorType(err, ErrorTypeConnection)
}

// IsClientError returns true if the error is caller-correctable.
func IsClientError(err error) bool {
	return IsErrorType(err, ErrorTypeClient)
}

// IsUnexpectedStatus returns true if the exchange answered with an unexpected status.
func IsUnexpectedStatus(err error) bool {
	return IsErrorType(err, ErrorTypeUnexpectedStatus)
}

// IsSigningError returns true if the request could not be signed.
func IsSigningError(err error) bool {
	return IsErrorType(err, ErrorTypeSigning)
}

// IsParseError returns true if an exchange payload could not be decoded.
func IsParseError(err error) bool {
	return IsErrorType(err, ErrorTypeParse)
}
