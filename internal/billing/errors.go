package billing

import "net/http"

type ErrorCode string

const (
	ErrInvalidLineItem       ErrorCode = "INVALID_LINE_ITEM"
	ErrInvalidAmount         ErrorCode = "INVALID_AMOUNT"
	ErrInvalidPaymentMode    ErrorCode = "INVALID_PAYMENT_MODE"
	ErrOverpaymentNotAllowed ErrorCode = "OVERPAYMENT_NOT_ALLOWED"
	ErrNothingDue            ErrorCode = "NOTHING_DUE"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusBadRequest, details)
}

// AsError unwraps a billing error from a plain error, if it is one.
func AsError(err error) (*Error, bool) {
	be, ok := err.(*Error)
	return be, ok
}
