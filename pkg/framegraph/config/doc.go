/*
Package config provides node parameters and their option schemas.

# Overview

Config wraps a map[string]any and provides typed accessor methods that
return defaults for missing keys and type mismatches. Node behaviors read
their parameters through it.

Schema declares which options a node type accepts. Graph building validates
every node's parameters against its type's schema, so by the time a run
starts no behavior has to re-check them.

# Basic Usage

	schema := config.Schema{
	    {Name: "gamma", Type: config.TypeFloat, Default: 2.2, Min: config.Bound(0.01)},
	    {Name: "mode", Type: config.TypeString, Default: "to_linear",
	        Choices: []any{"to_linear", "to_srgb"}},
	}

	if errs := schema.Validate(params); len(errs) > 0 {
	    return errors.Join(errs...)
	}
	cfg := schema.Apply(params)
	gamma := cfg.Float("gamma", 2.2)

# Type Coercion

Numeric accessors handle the representations produced by JSON, YAML and HCL
decoders:
  - Int accepts int, int64 and float64 without a fractional part
  - Float accepts float64, int and int64

# File Loading

FromFile reads flat parameter files such as the CLI's --var-file. The
extension picks the format: .yaml, .yml, .json or .hcl. An HCL file holds
top-level attributes only:

	plates = "shots/010/plates"
	pad    = 4

	cfg, err := config.FromFile("shot010.hcl")

Errors name the file. An unknown extension wraps ErrUnsupportedFormat.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
