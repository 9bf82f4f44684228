package simplerpc

import "encoding/json"

// Helpers for JSON parsing

// isArray returns true if the message is a JSON array (starts
// with '[', spaces skipped).
func isArray(raw json.RawMessage) bool {
	return firstByte(raw) == '['
}

// isObject returns true if the message is a JSON object.
func isObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

// hasValue returns true if the message is present and not a JSON null.
func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && firstByte(raw) != 'n'
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b
	}
	return 0
}

// isSpace returns true if the byte is considered a space in JSON syntax.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
