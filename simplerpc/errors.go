package simplerpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	ErrCodeParse         = -32700
	ErrCodeUnregistered  = -32601
	ErrCodeInvalidParams = -32602
	ErrCodeHandler       = -32603
	ErrCodeEncode        = -32000
	ErrCodeRateLimited   = -32005
)

var (
	// ErrClosed rejects calls still pending when their connection goes away.
	ErrClosed = errors.New("connection closed")
	// ErrNotConnected is returned by a Client without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrUnsupportedProtocol is returned when a connection did not negotiate
	// the simple-rpc sub-protocol.
	ErrUnsupportedProtocol = errors.New("unsupported sub-protocol")
	// ErrPendingOverflow rejects the oldest pending calls when the pending
	// limit is reached.
	ErrPendingOverflow = errors.New("too many pending calls")
)

// ErrResponse is the failure carried by a response envelope.
type ErrResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}

// ErrorCode returns the numeric error code.
func (err *ErrResponse) ErrorCode() int {
	return err.Code
}

// errUnregistered is the failure sent back when no handler matches.
func errUnregistered(namespace string) *ErrResponse {
	return &ErrResponse{
		Code:    ErrCodeUnregistered,
		Message: fmt.Sprintf("unregistered namespace: %q", namespace),
	}
}

// errRateLimited is the failure sent back for calls over the rate limit.
var errRateLimited = &ErrResponse{
	Code:    ErrCodeRateLimited,
	Message: "rate limit exceeded",
}

// encodeError converts a handler failure into a wire error payload.
func encodeError(err error) json.RawMessage {
	var errResp *ErrResponse
	if !errors.As(err, &errResp) {
		errResp = &ErrResponse{Code: ErrCodeHandler, Message: err.Error()}
	}
	raw, mErr := json.Marshal(errResp)
	if mErr != nil {
		// Data was not valid JSON, drop it
		raw, _ = json.Marshal(&ErrResponse{Code: errResp.Code, Message: errResp.Message})
	}
	return raw
}

// parseErrResponse accepts any error payload. Peers that do not send
// ErrResponse objects get their payload wrapped as the message.
func parseErrResponse(raw json.RawMessage) *ErrResponse {
	if isObject(raw) {
		var errResp ErrResponse
		if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Message != "" {
			return &errResp
		}
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return &ErrResponse{Code: ErrCodeHandler, Message: msg}
	}
	return &ErrResponse{Code: ErrCodeHandler, Message: string(raw), Data: raw}
}

// DecodeError is returned for malformed envelopes.
type DecodeError struct {
	Raw []byte
	Err error
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("malformed envelope: %s", err.Err)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// TimeoutError rejects a call that got no response within the timeout.
type TimeoutError struct {
	Namespace string
	After     time.Duration
}

func (err *TimeoutError) Error() string {
	return fmt.Sprintf("call to %q timed out after %s", err.Namespace, err.After)
}

// Timeout is always true, to satisfy net.Error-like checks.
func (err *TimeoutError) Timeout() bool {
	return true
}

// SendError is returned when the transport failed to send a call or signal.
type SendError struct {
	Namespace string
	Err       error
}

func (err *SendError) Error() string {
	return fmt.Sprintf("failed to send %q: %s", err.Namespace, err.Err)
}

func (err *SendError) Unwrap() error {
	return err.Err
}

// ErrContextMissingValue is returned when a context is missing an expected value.
type ErrContextMissingValue struct {
	Key contextKey
}

func (err ErrContextMissingValue) Error() string {
	return fmt.Sprintf("context missing value: %s", string(err.Key))
}
