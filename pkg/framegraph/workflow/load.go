package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"gopkg.in/yaml.v3"
)

// Format is a workflow file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// ErrUnknownFormat is returned for files whose extension names no known format.
var ErrUnknownFormat = errors.New("unknown workflow format")

// FormatError reports a workflow file that could not be parsed or is incomplete.
type FormatError struct {
	Path   string
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s workflow: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("%s workflow %s: %v", e.Format, e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ErrorCategory implements fgerrors.Categorizer.
func (e *FormatError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// DetectFormat returns the format implied by a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

type loadOptions struct {
	vars map[string]any
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithVars makes vars visible to HCL expressions as var.<name>, overriding
// the file's own vars. JSON and YAML placeholders are resolved by Expand.
func WithVars(vars map[string]any) LoadOption {
	return func(o *loadOptions) { o.vars = vars }
}

// Load reads and parses a workflow file.
func Load(path string, opts ...LoadOption) (*Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, &fgerrors.IOError{Op: "read workflow", Path: path, Err: err}
	}
	return Parse(data, format, path, opts...)
}

// Parse parses data in the given format. name is used in error messages.
func Parse(data []byte, format Format, name string, opts ...LoadOption) (*Document, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		doc *Document
		err error
	)
	switch format {
	case FormatJSON:
		doc, err = parseJSON(data)
	case FormatYAML:
		doc, err = parseYAML(data)
	case FormatHCL:
		doc, err = parseHCL(data, name, o.vars)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err == nil {
		err = doc.normalize()
	}
	if err != nil {
		return nil, &FormatError{Path: name, Format: format, Err: err}
	}
	return doc, nil
}

// ParseJSON parses a JSON workflow.
func ParseJSON(data []byte) (*Document, error) { return Parse(data, FormatJSON, "") }

// ParseYAML parses a YAML workflow.
func ParseYAML(data []byte) (*Document, error) { return Parse(data, FormatYAML, "") }

func parseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func parseYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
