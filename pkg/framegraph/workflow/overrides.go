package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidOverride is wrapped by every error from ApplyOverrides.
var ErrInvalidOverride = errors.New("invalid override")

// ApplyOverrides sets node parameters from "node.param=value" strings.
//
// When the parameter already has a value the new value is converted to the
// same type, so "src.first_frame=10" stays an integer. New parameters are
// typed the way a YAML scalar would be. Every invalid entry is reported; the
// valid ones are still applied.
func ApplyOverrides(doc *Document, overrides []string) error {
	var errs []error
	for _, o := range overrides {
		if err := applyOverride(doc, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func applyOverride(doc *Document, o string) error {
	key, raw, ok := strings.Cut(o, "=")
	if !ok {
		return fmt.Errorf("%w: %q, expected node.param=value", ErrInvalidOverride, o)
	}
	id, param, ok := strings.Cut(key, ".")
	if !ok || id == "" || param == "" {
		return fmt.Errorf("%w: key %q, expected node.param", ErrInvalidOverride, key)
	}
	node, ok := doc.Node(id)
	if !ok {
		return fmt.Errorf("%w: node %q not found", ErrInvalidOverride, id)
	}

	v, err := convertLike(node.Params[param], raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidOverride, key, err)
	}
	if node.Params == nil {
		node.Params = map[string]any{}
	}
	node.Params[param] = v
	return nil
}

// convertLike parses raw into the type of old.
func convertLike(old any, raw string) (any, error) {
	switch old.(type) {
	case string:
		return raw, nil
	case bool:
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", raw)
	case int, int64:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return i, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	default:
		return inferScalar(raw), nil
	}
}

// inferScalar types raw the way YAML would: 16 is an int, 2.2 a float,
// true a bool and anything else a string.
func inferScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	default:
		return raw
	}
}

// ParseVars parses "name=value" pairs. Values are typed like new override
// parameters.
func ParseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	var errs []error
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			errs = append(errs, fmt.Errorf("%w: variable %q, expected name=value", ErrInvalidOverride, p))
			continue
		}
		vars[name] = inferScalar(raw)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return vars, nil
}
