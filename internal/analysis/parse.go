package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed means the model reply held no decodable JSON object.
var ErrMalformed = errors.New("malformed analysis reply")

// Parse extracts the first JSON object from a model reply and coerces its
// loosely typed fields. Markdown fences and surrounding prose are ignored.
func Parse(reply string) (*Analysis, error) {
	obj, ok := firstObject(reply)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformed)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	a := &Analysis{
		Theme:           asString(raw["theme"]),
		Type:            asString(raw["type"]),
		Colors:          asList(raw["colors"]),
		SpecialRequests: asList(raw["special_requests"]),
		Keywords:        asList(raw["keywords"]),
	}
	if b := asString(raw["budget"]); b != "" {
		a.Budget = &b
	}
	return a, nil
}

// firstObject returns the first balanced {...} span, skipping braces inside
// JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return ""
	case []any:
		parts := asList(t)
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// asList accepts either a JSON array or a comma separated string.
func asList(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		for _, p := range strings.Split(t, ",") {
			if s := asString(p); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := asString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
