package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Interpolate replaces {{ variable }} placeholders in a string with values from state.
// If a variable is not found in state, the placeholder is left unchanged.
func Interpolate(template string, state *ExecutionState) string {
	if state == nil {
		return template
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		value, exists := lookup(state, name)
		if !exists {
			return match
		}
		return valueToString(value)
	})
}

// InterpolateParams recursively interpolates all string values in a params map.
// A string that is exactly one reference keeps the referenced value's type;
// mixed content becomes a string. The input map is never modified.
func InterpolateParams(params map[string]any, state *ExecutionState) map[string]any {
	if params == nil {
		return nil
	}
	result := make(map[string]any, len(params))
	for key, value := range params {
		if state == nil {
			result[key] = value
			continue
		}
		result[key] = interpolateValue(value, state)
	}
	return result
}

func interpolateValue(value any, state *ExecutionState) any {
	switch v := value.(type) {
	case string:
		return interpolateString(v, state)
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = interpolateValue(val, state)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = interpolateValue(val, state)
		}
		return result
	default:
		return value
	}
}

func interpolateString(s string, state *ExecutionState) any {
	trimmed := strings.TrimSpace(s)

	if m := variablePattern.FindStringSubmatchIndex(trimmed); m != nil && m[0] == 0 && m[1] == len(trimmed) {
		name := trimmed[m[2]:m[3]]
		if value, exists := lookup(state, name); exists {
			return value
		}
		return s
	}
	return Interpolate(s, state)
}

// lookup resolves a possibly dotted name ("baro.count") through nested maps.
func lookup(state *ExecutionState, name string) (any, bool) {
	if v, ok := state.Outputs[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	cur, ok := state.Outputs[parts[0]]
	if !ok {
		return nil, false
	}
	for _, p := range parts[1:] {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
