// Package pretty formats identifiers and payloads for log output.
package pretty

import "fmt"

// Abbrev shortens s for display. With no ranges, strings longer than 12
// characters are cut to 8. A single range sets both the maximum length and
// the cut, two ranges set them separately.
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen, cutTo := 12, 8
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

// Abbreviated is a string that is shortened when formatted.
type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if len(s.Original) > s.MaxLen {
		cut := s.CutTo
		if cut > len(s.Original) {
			cut = len(s.Original)
		}
		return fmt.Sprintf("%s…", s.Original[:cut])
	}
	return s.Original
}

// Payload is a message body that is truncated to Max bytes when formatted,
// followed by its full size.
type Payload struct {
	Body []byte
	Max  int
}

func (p Payload) String() string {
	if p.Max <= 0 || len(p.Body) <= p.Max {
		return string(p.Body)
	}
	return fmt.Sprintf("%s… (%d bytes)", p.Body[:p.Max], len(p.Body))
}
