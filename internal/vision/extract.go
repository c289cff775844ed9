package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlock matches a ```json ... ``` or bare ``` ... ``` code fence.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON pulls a JSON object out of a model response that may be a bare
// JSON document, a fenced code block, or JSON embedded in surrounding prose.
// Models backing the vision RPC are not guaranteed to return clean JSON, so
// this is deliberately permissive: try the whole string first, then the
// first fenced block, then the first balanced {...} span.
func extractJSON(raw string, out interface{}) error {
	raw = strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	if span, ok := firstBalancedObject(raw); ok {
		if err := json.Unmarshal([]byte(span), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("vision: could not extract JSON object from response: %q", truncate(raw, 200))
}

// firstBalancedObject scans for the first top-level {...} span, respecting
// nested braces and quoted strings so it doesn't stop at a brace inside a
// string value.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
