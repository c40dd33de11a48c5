package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

// ErrUnsupportedFormat indicates a parameter file with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported parameter file format")

// FileError is a parameter file that could not be parsed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error { return e.Err }

// ErrorCategory implements fgerrors.Categorizer.
func (e *FileError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// FromFile loads a flat parameter file, choosing the format by extension:
// .yaml, .yml, .json or .hcl. Errors name the file.
func FromFile(path string) (Config, error) {
	var parse func([]byte) (Config, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parse = FromYAML
	case ".json":
		parse = FromJSON
	case ".hcl":
		parse = func(data []byte) (Config, error) { return parseHCL(data, path) }
	default:
		return Config{}, &FileError{Path: path, Err: fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &fgerrors.IOError{Op: "read parameters", Path: path, Err: err}
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, &FileError{Path: path, Err: err}
	}
	return cfg, nil
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromHCL parses HCL attributes into a Config:
//
//	plates = "shots/010/plates"
//	pad    = 4
//
// Blocks are not allowed and expressions may not reference variables.
func FromHCL(data []byte) (Config, error) { return parseHCL(data, "params.hcl") }

func parseHCL(data []byte, filename string) (Config, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("parse hcl: %w", diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("parse hcl: %w", diags)
	}

	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return Config{}, fmt.Errorf("parse hcl: %w", diags)
		}
		vals[name] = v
	}

	// Round-trip through JSON so numbers and nesting match FromJSON.
	obj := cty.ObjectVal(vals)
	raw, err := ctyjson.Marshal(obj, obj.Type())
	if err != nil {
		return Config{}, fmt.Errorf("convert hcl: %w", err)
	}
	return FromJSON(raw)
}
