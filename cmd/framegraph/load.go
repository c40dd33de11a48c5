package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/nodes"
	"github.com/randalmurphal/framegraph/pkg/framegraph/workflow"
)

// workflowFlags are shared by commands that load a workflow file.
type workflowFlags struct {
	sets    []string
	vars    []string
	varFile string
	dir     string
}

func (f *workflowFlags) register(cmd *cobra.Command, overrides bool) {
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Set a workflow variable: name=value (repeatable)")
	cmd.Flags().StringVar(&f.varFile, "var-file", "", "Load workflow variables from a YAML or JSON file; --var wins")
	if overrides {
		cmd.Flags().StringArrayVarP(&f.sets, "set", "s", nil, "Override a node parameter: node.param=value (repeatable)")
		cmd.Flags().StringVarP(&f.dir, "dir", "d", "", "Base directory for relative paths (default: the workflow file's directory)")
	}
}

// compile loads path, applies overrides and variables, and compiles the
// graph. Load and validation failures are reported as usage errors.
func (f *workflowFlags) compile(path string, errOut io.Writer) (*framegraph.Plan, error) {
	vars, err := f.variables()
	if err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}

	doc, err := workflow.Load(path, workflow.WithVars(vars))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitUsage, "file not found: %s", path)
		}
		return nil, exitError(exitUsage, "%v", err)
	}
	if err := workflow.ApplyOverrides(doc, f.sets); err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}
	doc, err = workflow.Expand(doc, vars)
	if err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}

	dir := f.dir
	if dir == "" {
		dir = filepath.Dir(path)
	} else if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, exitError(exitUsage, "directory not found: %s", dir)
	}
	types, err := builtinTypes(nodes.Env{Dir: dir})
	if err != nil {
		return nil, exitError(exitInvariant, "%v", err)
	}

	g, err := workflow.Build(doc, types)
	if err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}
	plan, err := g.Compile()
	if err != nil {
		printErrors(errOut, path, err)
		return nil, exitError(exitUsage, "%s: validation failed", path)
	}
	return plan, nil
}

// variables merges --var-file and --var values.
func (f *workflowFlags) variables() (map[string]any, error) {
	vars, err := workflow.ParseVars(f.vars)
	if err != nil {
		return nil, err
	}
	if f.varFile == "" {
		return vars, nil
	}
	file, err := config.FromFile(f.varFile)
	if err != nil {
		return nil, fmt.Errorf("var file: %w", err)
	}
	merged := maps.Clone(file.Raw())
	for k, v := range vars {
		merged[k] = v
	}
	return merged, nil
}

func builtinTypes(env nodes.Env) (*framegraph.TypeRegistry, error) {
	types := framegraph.NewTypeRegistry()
	if err := nodes.RegisterBuiltins(types, env); err != nil {
		return nil, err
	}
	return types, nil
}

// printErrors writes each line of err prefixed with path.
func printErrors(w io.Writer, path string, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(w, "%s: %s\n", path, line)
	}
}
