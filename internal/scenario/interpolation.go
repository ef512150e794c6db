package scenario

import (
	"fmt"
	"regexp"
	"strings"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Interpolate replaces {{ variable }} placeholders in s with saved values.
// Unknown variables are left as they are.
func Interpolate(s string, vars map[string]any) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok {
			return match
		}
		return fmt.Sprint(v)
	})
}

// InterpolateParams returns a copy of params with every placeholder
// resolved. A string that is exactly one placeholder keeps the saved
// value's type, so "{{ addr }}" can stand in for a number.
func InterpolateParams(params map[string]any, vars map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = interpolateValue(v, vars)
	}
	return out
}

func interpolateValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		if m := variablePattern.FindStringSubmatch(val); m != nil && strings.TrimSpace(val) == m[0] {
			if saved, ok := vars[m[1]]; ok {
				return saved
			}
		}
		return Interpolate(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, vars)
		}
		return out
	case map[string]any:
		return InterpolateParams(val, vars)
	default:
		return v
	}
}
