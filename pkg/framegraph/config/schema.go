package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Type is the accepted value type of an option.
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeMap
)

// String returns the type name used in error messages and node listings.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeMap:
		return "map"
	default:
		return "any"
	}
}

// ErrInvalidOption is wrapped by every error returned from Schema.Validate.
var ErrInvalidOption = errors.New("invalid option")

// Option describes one accepted node parameter.
type Option struct {
	Name        string
	Type        Type
	Default     any
	Required    bool
	Description string

	// Min and Max bound numeric options when non-nil.
	Min *float64
	Max *float64

	// Choices restricts the value to a fixed set when non-empty.
	Choices []any
}

// Bound is a convenience for Option.Min and Option.Max literals.
func Bound(v float64) *float64 {
	return &v
}

// Schema is the ordered set of options a node type accepts.
type Schema []Option

// Lookup returns the option with the given name.
func (s Schema) Lookup(name string) (Option, bool) {
	for _, o := range s {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Validate checks params against the schema and returns every problem found.
// Unknown keys, missing required options, wrong types, out-of-range numbers
// and values outside Choices are all reported.
func (s Schema) Validate(params map[string]any) []error {
	var errs []error
	for key := range params {
		if _, ok := s.Lookup(key); !ok {
			errs = append(errs, fmt.Errorf("%w: unknown option %q", ErrInvalidOption, key))
		}
	}
	for _, o := range s {
		v, ok := params[o.Name]
		if !ok {
			if o.Required {
				errs = append(errs, fmt.Errorf("%w: %q is required", ErrInvalidOption, o.Name))
			}
			continue
		}
		if err := o.check(v); err != nil {
			errs = append(errs, err)
		}
	}
	// map iteration above is unordered
	slices.SortFunc(errs, func(a, b error) int {
		return strings.Compare(a.Error(), b.Error())
	})
	return errs
}

// Apply returns a Config holding params with defaults filled in for missing options.
// The input map is not modified.
func (s Schema) Apply(params map[string]any) Config {
	out := make(map[string]any, len(s)+len(params))
	for _, o := range s {
		if o.Default != nil {
			out[o.Name] = o.Default
		}
	}
	maps.Copy(out, params)
	return New(out)
}

func (o Option) check(v any) error {
	switch o.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return o.typeErr(v)
		}
	case TypeInt:
		if _, ok := toInt(v); !ok {
			return o.typeErr(v)
		}
	case TypeFloat:
		if _, ok := toFloat(v); !ok {
			return o.typeErr(v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return o.typeErr(v)
		}
	case TypeMap:
		if _, ok := toMap(v); !ok {
			return o.typeErr(v)
		}
	}

	if f, ok := toFloat(v); ok {
		if o.Min != nil && f < *o.Min {
			return fmt.Errorf("%w: %q = %v is below minimum %v", ErrInvalidOption, o.Name, v, *o.Min)
		}
		if o.Max != nil && f > *o.Max {
			return fmt.Errorf("%w: %q = %v is above maximum %v", ErrInvalidOption, o.Name, v, *o.Max)
		}
	}

	if len(o.Choices) > 0 && !o.allows(v) {
		choices := make([]string, len(o.Choices))
		for i, c := range o.Choices {
			choices[i] = fmt.Sprint(c)
		}
		return fmt.Errorf("%w: %q = %v, must be one of [%s]", ErrInvalidOption, o.Name, v, strings.Join(choices, ", "))
	}
	return nil
}

func (o Option) allows(v any) bool {
	for _, c := range o.Choices {
		if fmt.Sprint(c) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func (o Option) typeErr(v any) error {
	return fmt.Errorf("%w: %q must be %s, got %T", ErrInvalidOption, o.Name, o.Type, v)
}
