package chain

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Response is a step output: either plain text or a structured object.
// The zero value is an empty text response.
type Response struct {
	raw    string
	object *Object
}

// Text builds a plain text response.
func Text(s string) Response {
	return Response{raw: s}
}

// Structured builds a structured response. A nil object yields an empty one.
func Structured(o *Object) Response {
	if o == nil {
		o = NewObject()
	}
	return Response{object: o}
}

func (r Response) IsStructured() bool { return r.object != nil }

// Object returns the structured value, or nil for text responses.
func (r Response) Object() *Object { return r.object }

// Raw returns the text the model produced. For structured responses built
// without text it is the compact JSON form.
func (r Response) Raw() string {
	if r.raw == "" && r.object != nil {
		return r.String()
	}
	return r.raw
}

// String is the form substituted into later prompts.
func (r Response) String() string {
	if r.object == nil {
		return r.raw
	}
	b, err := r.object.MarshalJSON()
	if err != nil {
		return r.raw
	}
	return string(b)
}

// Field returns a nested field of a structured response.
func (r Response) Field(path ...string) (any, bool) {
	if r.object == nil {
		return nil, false
	}
	return r.object.Lookup(path...)
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.object != nil {
		return r.object.MarshalJSON()
	}
	return json.Marshal(r.raw)
}

func (r *Response) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*r = Response{}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode text response: %w", err)
		}
		*r = Text(s)
	case trimmed[0] == '{':
		obj, err := ParseObject(trimmed)
		if err != nil {
			return fmt.Errorf("decode structured response: %w", err)
		}
		*r = Response{raw: string(trimmed), object: obj}
	default:
		*r = Text(string(trimmed))
	}
	return nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n(.*?)```")

// parseResponseText turns model text into a Response. Text that looks like a
// JSON object but fails to decode is kept verbatim and reported through warn.
func parseResponseText(text string) (resp Response, warn error) {
	candidate, ok := extractJSONObject(text)
	if !ok {
		return Text(text), nil
	}
	obj, err := ParseObject([]byte(candidate))
	if err != nil {
		return Text(text), err
	}
	return Response{raw: text, object: obj}, nil
}

func extractJSONObject(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	// Only `{"` and `{}` open an object; other braces are prose.
	rest := strings.TrimLeft(s[start+1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) && !strings.HasPrefix(rest, "}") {
		return "", false
	}
	return s[start : end+1], true
}

// displayValue stringifies context values and structured fields for substitution.
func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case Response:
		return t.String()
	case *Object:
		b, err := t.MarshalJSON()
		if err != nil {
			return fmt.Sprint(t.values)
		}
		return string(b)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
