package simplerpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// parsePositionalArguments takes the data of a call envelope and decodes
// each positional argument into a new value of its type. Only JSON arrays
// are supported as params.
func parsePositionalArguments(params json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	var args []json.RawMessage
	if hasValue(params) {
		if !isArray(params) {
			return nil, errors.New("params must be an array")
		}
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, err
		}
	}
	if len(args) > len(types) {
		return nil, fmt.Errorf("too many arguments: expected %d, got %d", len(types), len(args))
	}
	if len(args) < len(types) {
		return nil, fmt.Errorf("not enough arguments: expected %d, got %d", len(types), len(args))
	}

	values := make([]reflect.Value, 0, len(types))
	for i, arg := range args {
		value := reflect.New(types[i])
		if err := json.Unmarshal(arg, value.Interface()); err != nil {
			return nil, fmt.Errorf("invalid argument %d: %s", i, err)
		}
		values = append(values, value.Elem())
	}
	return values, nil
}
