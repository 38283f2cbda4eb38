package indexer

import (
	"fmt"
	"strings"
)

// ParseWhere converts key=value filter flags into event filter values.
// Alternatives are separated by '|' and match as OR; '*' leaves the key
// unconstrained.
func ParseWhere(inputs []string) (map[string]interface{}, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	values := make(map[string]interface{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		key, raw, ok := strings.Cut(input, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", input)
		}
		raw = strings.TrimSpace(raw)
		if raw == "*" {
			values[key] = nil
			continue
		}

		var alternatives []string
		for _, part := range strings.Split(raw, "|") {
			if part = strings.TrimSpace(part); part != "" {
				alternatives = append(alternatives, part)
			}
		}
		switch len(alternatives) {
		case 0:
			return nil, fmt.Errorf("empty value for filter %q", key)
		case 1:
			values[key] = alternatives[0]
		default:
			values[key] = alternatives
		}
	}
	return values, nil
}
