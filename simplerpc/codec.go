package simplerpc

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an envelope into its wire form. Invalid envelopes are
// refused so that every encoded message decodes on the other side.
func Encode(e *Envelope) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return json.Marshal(e)
}

// Decode parses and validates a wire message. Any malformed input yields a
// *DecodeError.
func Decode(raw []byte) (*Envelope, error) {
	if !isObject(raw) {
		return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("not a JSON object")}
	}
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	if err := e.validate(); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	return &e, nil
}
