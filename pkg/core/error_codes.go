package core

import "errors"

// ErrorCode is a numeric error code returned by the exchange in {"code":..,"msg":..} bodies.
type ErrorCode int

// Exchange error codes the client reacts to or reports on.
const (
	CodeUnknown              ErrorCode = -1000
	CodeDisconnected         ErrorCode = -1001
	CodeUnauthorized         ErrorCode = -1002
	CodeTooManyRequests      ErrorCode = -1003
	CodeTimestampOutOfWindow ErrorCode = -1021
	CodeInvalidSignature     ErrorCode = -1022
	CodeMandatoryParamEmpty  ErrorCode = -1102
	CodeInvalidInterval      ErrorCode = -1120
	CodeInvalidSymbol        ErrorCode = -1121
	CodeRejectedMBXKey       ErrorCode = -2015
	CodeUnknownOrder         ErrorCode = -2011
	CodeNoSuchOrder          ErrorCode = -2013
	CodeMarginInsufficient   ErrorCode = -2019
)

// IsErrorCode reports whether err carries the given exchange error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
