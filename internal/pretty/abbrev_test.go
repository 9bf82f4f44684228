package pretty

import (
	"fmt"
	"strings"
	"testing"
)

func TestAbbrev(t *testing.T) {
	cases := []struct {
		In     string
		Ranges []int
		Want   string
	}{
		{"short", nil, "short"},
		{"123456789012", nil, "123456789012"},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil, "6ba7b810…"},
		{"abcdef", []int{4}, "abcd…"},
		{"abcdef", []int{5, 2}, "ab…"},
		{"abcdef", []int{6, 2}, "abcdef"},
		{"abcdef", []int{3, 10}, "abcdef…"},
	}

	for i, tc := range cases {
		if got := Abbrev(tc.In, tc.Ranges...).String(); got != tc.Want {
			t.Errorf("[case #%d] got: %q; want: %q", i, got, tc.Want)
		}
	}
}

func TestPayload(t *testing.T) {
	body := []byte(`{"type":"c","id":1,"namespace":"echo","data":["` + strings.Repeat("x", 100) + `"]}`)

	if got := fmt.Sprintf("%s", Payload{Body: body}); got != string(body) {
		t.Errorf("unlimited payload was changed: %s", got)
	}
	if got := fmt.Sprintf("%s", Payload{Body: body, Max: 1000}); got != string(body) {
		t.Errorf("short payload was changed: %s", got)
	}

	want := fmt.Sprintf(`{"type":"c"… (%d bytes)`, len(body))
	if got := fmt.Sprintf("%s", Payload{Body: body, Max: 11}); got != want {
		t.Errorf("got: %q; want: %q", got, want)
	}
}
