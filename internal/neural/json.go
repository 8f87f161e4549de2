package neural

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("no JSON object in model answer")

// ExtractJSON strips code fences and returns the first balanced {...} block.
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], "{") {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
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

// DecodeJSON unmarshals the first JSON object found in text into v.
func DecodeJSON(text string, v any) error {
	obj, ok := ExtractJSON(text)
	if !ok {
		return errNoJSON
	}
	return json.Unmarshal([]byte(obj), v)
}
