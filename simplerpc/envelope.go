package simplerpc

import (
	"encoding/json"
	"fmt"
)

// Type distinguishes calls from responses on the wire.
type Type string

const (
	TypeCall     Type = "c"
	TypeResponse Type = "r"
)

// Envelope is the unit exchanged between peers.
//
// A call with a zero ID does not request a response (a signal). Responses
// always carry the non-zero ID of the call they answer. Peers that number
// their calls from 0 are not wire compatible: their first call is taken for
// a signal and never answered.
type Envelope struct {
	Type      Type            `json:"type"`
	ID        uint64          `json:"id,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// WantsResponse returns true for calls that expect a correlated response.
func (e *Envelope) WantsResponse() bool {
	return e.Type == TypeCall && e.ID != 0
}

func (e *Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%#v", e)
	}
	return string(out)
}

func (e *Envelope) validate() error {
	switch e.Type {
	case TypeCall:
		if e.Namespace == "" {
			return fmt.Errorf("call is missing a namespace")
		}
		if hasValue(e.Error) {
			return fmt.Errorf("call to %q carries an error", e.Namespace)
		}
		if hasValue(e.Data) && !isArray(e.Data) {
			return fmt.Errorf("call to %q has non-array data", e.Namespace)
		}
	case TypeResponse:
		if e.ID == 0 {
			return fmt.Errorf("response is missing an id")
		}
		if e.Namespace != "" {
			return fmt.Errorf("response %d carries a namespace", e.ID)
		}
	default:
		return fmt.Errorf("unknown envelope type: %q", e.Type)
	}
	return nil
}

// newCall builds a call envelope with the given positional args. An id of 0
// builds a signal.
func newCall(id uint64, namespace string, args []interface{}) (*Envelope, error) {
	if args == nil {
		args = []interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      TypeCall,
		ID:        id,
		Namespace: namespace,
		Data:      data,
	}, nil
}
