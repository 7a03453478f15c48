// Package v1 represents types used by the web application for v1.
package v1

import "errors"

// Set of error kinds reported to clients.
const (
	KindInvalidTransaction = "InvalidTransaction"
	KindInvalidQuery       = "InvalidQuery"
	KindInvalidSignature   = "InvalidSignature"
	KindNotFound           = "NotFound"
	KindCorruptPayload     = "CorruptPayload"
	KindDecryptionError    = "DecryptionError"
	KindSealError          = "SealError"
	KindInternal           = "Internal"
)

// ErrorResponse is the form used for API responses from failures in the API.
type ErrorResponse struct {
	Kind   string            `json:"kind"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RequestError is used to pass an error during the request through the
// application with web specific context.
type RequestError struct {
	Err    error
	Status int
	Kind   string
}

// NewRequestError wraps a provided error with an HTTP status code and the
// kind reported to the client. This function should be used when handlers
// encounter expected errors.
func NewRequestError(err error, status int, kind string) error {
	return &RequestError{err, status, kind}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *RequestError) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *RequestError) Unwrap() error {
	return re.Err
}

// IsRequestError checks if an error of type RequestError exists.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// GetRequestError returns a copy of the RequestError pointer.
func GetRequestError(err error) *RequestError {
	var re *RequestError
	if !errors.As(err, &re) {
		return nil
	}
	return re
}
