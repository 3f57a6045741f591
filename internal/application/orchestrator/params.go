package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveParams substitutes ${...} placeholders in a step's parameter
// template with values from the run's accumulated context. A string that is
// exactly one placeholder keeps the referenced value's type; placeholders
// embedded in longer strings are interpolated as text. A reference to a
// value the context does not hold is an error: the step cannot run with a
// missing input.
func resolveParams(params map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	if len(params) == 0 {
		return params, nil
	}
	resolved, err := resolveValue(params, context)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]interface{}), nil
}

func resolveValue(v interface{}, context map[string]interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, context)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			rv, err := resolveValue(val, context)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			rv, err := resolveValue(val, context)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, context map[string]interface{}) (interface{}, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Whole-string placeholder: keep the referenced value as-is, so ids,
	// numbers and structured outputs survive with their types.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return lookup(s[matches[0][2]:matches[0][3]], context)
	}

	var resolveErr error
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		ref := m[2 : len(m)-1]
		val, err := lookup(ref, context)
		if err != nil {
			resolveErr = err
			return m
		}
		return fmt.Sprintf("%v", val)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}

// lookup resolves a dotted reference like "a.output.id" or "params.topic"
// against the run context. Context stores each step's output directly under
// its step ID, so the conventional "output" segment after a step ID is
// transparent.
func lookup(ref string, context map[string]interface{}) (interface{}, error) {
	tokens := strings.Split(ref, ".")

	val, err := navigate(context, tokens)
	if err == nil {
		return val, nil
	}
	if len(tokens) >= 2 && tokens[1] == "output" {
		short := append([]string{tokens[0]}, tokens[2:]...)
		if val, err2 := navigate(context, short); err2 == nil {
			return val, nil
		}
	}
	return nil, fmt.Errorf("unresolved parameter reference ${%s}: %w", ref, err)
}

func navigate(root map[string]interface{}, tokens []string) (interface{}, error) {
	var cur interface{} = root
	for _, token := range tokens {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("segment %q is not an object", token)
		}
		cur, ok = m[token]
		if !ok {
			return nil, fmt.Errorf("segment %q not found", token)
		}
	}
	return cur, nil
}
