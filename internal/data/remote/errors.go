package remote

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches every failure to obtain a usable response from the
// shared-log service: transport errors, non-2xx statuses and undecodable bodies.
var ErrUnavailable = errors.New("remote unavailable")

// APIError is a transport failure or a non-2xx response.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("remote error at %s: %s", e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool {
	if target == ErrUnavailable {
		return true
	}
	_, ok := target.(*APIError)
	return ok
}

// DecodeError is a 2xx response whose body does not have the expected shape.
type DecodeError struct {
	Endpoint string
	Message  string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error at %s: %s: %v", e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("decode error at %s: %s", e.Endpoint, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	if target == ErrUnavailable {
		return true
	}
	_, ok := target.(*DecodeError)
	return ok
}
