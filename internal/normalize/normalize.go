// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize sanitizes data returned by external sources before it
// crosses the system boundary. Strings are stripped of control characters,
// converted to NFC and trimmed; generic JSON trees are cleaned recursively;
// scalar values are coerced to text where a text field is expected.
//
// Every function in this package is idempotent: normalizing an already
// normalized value returns an equal value.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Text strips control characters (newlines and tabs are kept), converts the
// result to NFC and trims surrounding whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' {
			return '\n'
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(norm.NFC.String(cleaned))
}

// Truncate shortens s to at most max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// Value cleans a decoded JSON tree. Strings (including map keys) go through
// Text; maps and slices are rebuilt recursively; other values are returned
// unchanged.
func Value(v any) any {
	switch x := v.(type) {
	case string:
		return Text(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[Text(k)] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Value(val)
		}
		return out
	default:
		return v
	}
}

// Stringify coerces a decoded JSON scalar to text. Absent values become the
// empty string; objects and arrays are rendered as compact JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return Text(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return Text(string(b))
	default:
		return Text(fmt.Sprint(x))
	}
}

// Strings coerces a decoded JSON value to a list of non-empty texts. Any
// value that is not a list yields an empty, non-nil slice.
func Strings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := Stringify(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Object decodes raw JSON text into a cleaned object. Markdown code fences
// around the JSON are tolerated. A payload that is not a JSON object is an
// error.
func Object(raw string) (map[string]any, error) {
	raw = stripFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing JSON payload: %w", err)
	}
	obj, ok := Value(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("JSON payload is %T, want object", v)
	}
	return obj, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
