package models

import "fmt"

// Bybit v5 return codes that indicate a signing or clock problem rather than
// a rejected operation.
const (
	RetCodeInvalidAPIKey    = 10003
	RetCodeInvalidSignature = 10004
	RetCodeTimestampExpired = 10002
	RetCodePermissionDenied = 10005
)

// ExchangeError is an application level rejection returned inside a REST or
// websocket envelope. It is surfaced verbatim and never retried by the
// library; the code may indicate an invalid order.
type ExchangeError struct {
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Message)
}

// TransportError wraps DNS, dial, TLS and timeout failures. These are the
// only errors a caller can usually retry with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports a rejected signature, API key or expired timestamp.
// Retrying with the same credentials will not help; when ClockSkew is set
// the caller should resynchronise its clock source instead.
type AuthError struct {
	Code      int
	Message   string
	ClockSkew bool
}

func (e *AuthError) Error() string {
	if e.ClockSkew {
		return fmt.Sprintf("auth rejected (clock skew) %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("auth rejected %d: %s", e.Code, e.Message)
}

// ProtocolError reports a malformed frame or an envelope that does not match
// any known shape.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ClassifyRetCode converts a nonzero envelope return code into the matching
// typed error. Signing related codes become AuthError, everything else an
// ExchangeError.
func ClassifyRetCode(code int, msg string) error {
	switch code {
	case RetCodeTimestampExpired:
		return &AuthError{Code: code, Message: msg, ClockSkew: true}
	case RetCodeInvalidAPIKey, RetCodeInvalidSignature, RetCodePermissionDenied:
		return &AuthError{Code: code, Message: msg}
	default:
		return &ExchangeError{Code: code, Message: msg}
	}
}
