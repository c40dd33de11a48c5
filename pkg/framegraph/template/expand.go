package template

import (
	"fmt"
	"regexp"
	"strings"
)

// bracePattern matches ${varname}; varname is alphanumeric plus underscore.
var bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Expander expands ${var} placeholders in workflow parameters.
//
// Create with NewExpander() and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
	typedValues   bool
}

// NewExpander creates a new Expander with the given options.
//
// Default configuration:
//   - MissingAction: MissingKeep (keep placeholders as-is)
//   - TypedValues: enabled (a value that is exactly "${var}" takes the variable's type)
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		typedValues:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands ${var} placeholders in s using vars.
//
// Errors are only returned when MissingAction is MissingError and
// a variable is not found.
//
// Example:
//
//	exp := NewExpander()
//	result, err := exp.Expand("${root}/frames", map[string]any{"root": "/data"})
//	// result: "/data/frames"
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	result := bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprint(val)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// ExpandValue expands placeholders inside v.
//
// Strings are expanded; maps and slices are walked recursively; other
// values are returned unchanged. With typed values enabled, a string that
// consists of a single placeholder is replaced by the variable itself, so
// "first_frame": "${start}" yields an int when start is an int.
func (e *Expander) ExpandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		if e.typedValues {
			if m := bracePattern.FindStringSubmatch(val); m != nil && m[0] == val {
				if typed, ok := vars[m[1]]; ok {
					return typed, nil
				}
			}
		}
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.ExpandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// ExpandMap expands placeholders in every value of m recursively.
// Returns a new map; m is not modified.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.ExpandValue(v, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		result[k] = expanded
	}
	return result, nil
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// defaultExpander is the package-level expander with default settings.
var defaultExpander = NewExpander()

// Expand expands placeholders in s using the default expander.
// Missing variables stay as-is.
func Expand(s string, vars map[string]any) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// Variables returns the distinct placeholder names referenced in s, in order.
func Variables(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range bracePattern.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
