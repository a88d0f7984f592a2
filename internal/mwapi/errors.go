package mwapi

import "fmt"

// TransportError is returned when the API could not be reached or its answer
// was not a usable JSON document.
type TransportError struct {
	Method string
	Status int    // HTTP status, 0 when no response was received
	Body   string // leading part of the response body, if any
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("mwapi: %s request failed", e.Method)
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" && e.Err == nil {
		msg += ": " + e.Body
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is the API's own error object ({"error":{"code":..,"info":..}}).
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mwapi: api error %s: %s", e.Code, e.Info)
}

// LoginError reports a rejected login attempt.
type LoginError struct {
	User   string
	Result string
	Reason string
}

func (e *LoginError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("mwapi: login as %q failed: %s (%s)", e.User, e.Result, e.Reason)
	}
	return fmt.Sprintf("mwapi: login as %q failed: %s", e.User, e.Result)
}
