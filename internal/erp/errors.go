package erp

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed is returned when no token could be obtained.
	ErrAuthFailed = errors.New("erp authentication failed")
	// ErrTransport is returned when the HTTP exchange itself failed.
	ErrTransport = errors.New("erp transport error")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("erp error status")
	// ErrUnexpectedResponse is returned when a 2xx body lacks the expected data.
	ErrUnexpectedResponse = errors.New("erp unexpected response")
	// ErrUnrecognizedShape is returned when a body matches none of the known shapes.
	ErrUnrecognizedShape = errors.New("unrecognized response shape")
)

// StatusError describes a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Is lets errors.Is match ErrStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// ResponseError describes a 2xx response that did not carry the expected data.
type ResponseError struct {
	Op       string
	Message  string
	Response *Response
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return e.Op + ": unexpected response"
	}
	return e.Op + ": " + e.Message
}

// Is lets errors.Is match ErrUnexpectedResponse.
func (e *ResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}

// Reason returns the most useful human readable description of err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Message != "" {
			return statusErr.Message
		}
		return fmt.Sprintf("status %d", statusErr.StatusCode)
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message
	}
	if errors.Is(err, ErrAuthFailed) {
		return ErrAuthFailed.Error()
	}
	return err.Error()
}
