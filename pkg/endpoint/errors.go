package endpoint

import (
	"errors"
	"fmt"
)

// Common errors returned by endpoints.
var (
	// ErrTokenMissing is returned when neither a token nor a JWT was supplied.
	ErrTokenMissing = errors.New("token or jwttoken must be present")

	// ErrRetryExhausted is returned when all connection retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrTimeout is returned when a single call exceeded its deadline.
	// Timeouts are never retried.
	ErrTimeout = errors.New("request timed out")
)

// ErrorClass represents a classification of endpoint errors.
type ErrorClass string

const (
	// ErrorClassConfig represents construction-time configuration errors.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassRedirect represents 3xx responses left after redirect handling.
	ErrorClassRedirect ErrorClass = "redirect"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassContentType represents a non-JSON body where JSON was expected.
	ErrorClassContentType ErrorClass = "content_type"
)

// EndpointError is returned by the authenticated endpoint for configuration
// problems, HTTP status codes >= 300 and unexpected content types.
type EndpointError struct {
	Class   ErrorClass
	Code    int
	Message string
	// Body is the raw response content, set for HTTP errors.
	Body string
	Err  error
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EndpointError) Unwrap() error {
	return e.Err
}

func tokenMissingError() *EndpointError {
	return &EndpointError{
		Class:   ErrorClassConfig,
		Message: "invalid credentials",
		Err:     ErrTokenMissing,
	}
}

func contentTypeError(contentType string) *EndpointError {
	return &EndpointError{
		Class:   ErrorClassContentType,
		Message: fmt.Sprintf("Unexpected response content type: %s", contentType),
	}
}

func httpError(code int, body []byte) *EndpointError {
	return &EndpointError{
		Class:   classifyStatus(code),
		Code:    code,
		Message: fmt.Sprintf("Error returned from HTTP layer: %d", code),
		Body:    string(body),
	}
}

// classifyStatus categorizes a status code >= 300.
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 500:
		return ErrorClassServer
	case code >= 400:
		return ErrorClassClient
	default:
		return ErrorClassRedirect
	}
}

// IsStatus reports whether err is an EndpointError carrying the given HTTP status code.
func IsStatus(err error, code int) bool {
	var epErr *EndpointError
	if errors.As(err, &epErr) {
		return epErr.Code == code
	}
	return false
}
