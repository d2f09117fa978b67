package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONText strips a surrounding markdown code fence (``` or ```json)
// from a model reply.
func ExtractJSONText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimLeft(s, " \t\r\n")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeObject parses a model reply as a JSON object.
func DecodeObject(raw string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(ExtractJSONText(raw)), &obj); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode model reply: not an object")
	}
	return obj, nil
}

// StringField returns obj[key] when it is a non-blank string.
func StringField(obj map[string]any, key string) string {
	v, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
