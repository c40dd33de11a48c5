package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/nodes"
	"github.com/randalmurphal/framegraph/pkg/framegraph/ops"
)

func newNodesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List builtin node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := builtinTypes(nodes.Env{})
			if err != nil {
				return exitError(exitInvariant, "%v", err)
			}
			out := cmd.OutOrStdout()
			if !verbose {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tCAPABILITY\tINPUTS\tOUTPUTS")
				for _, t := range types.List() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Capability, ports(t.Inputs, true), ports(t.Outputs, false))
				}
				return tw.Flush()
			}
			for i, t := range types.List() {
				if i > 0 {
					fmt.Fprintln(out)
				}
				describeType(out, t)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show descriptions and options")
	return cmd
}

// ports formats port specs; optional inputs are marked with "?".
func ports(ps []framegraph.PortSpec, inputs bool) string {
	if len(ps) == 0 {
		return "-"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name + ":" + p.Kind.String()
		if inputs && !p.Required {
			parts[i] += "?"
		}
	}
	return strings.Join(parts, ", ")
}

func describeType(w io.Writer, t framegraph.NodeType) {
	fmt.Fprintf(w, "%s (%s, %s)\n  %s\n", t.Name, t.Category, t.Capability, t.Description)
	fmt.Fprintf(w, "  inputs:  %s\n  outputs: %s\n", ports(t.Inputs, true), ports(t.Outputs, false))
	writeOptions(w, t.Options)
}

func writeOptions(w io.Writer, schema config.Schema) {
	for _, o := range schema {
		fmt.Fprintf(w, "  - %s (%s)", o.Name, o.Type)
		if o.Required {
			fmt.Fprint(w, " required")
		} else if o.Default != nil {
			fmt.Fprintf(w, " default %v", o.Default)
		}
		if len(o.Choices) > 0 {
			fmt.Fprintf(w, " one of %v", o.Choices)
		}
		if o.Description != "" {
			fmt.Fprintf(w, ": %s", o.Description)
		}
		fmt.Fprintln(w)
	}
}

func newOpsCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List postprocess operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, info := range ops.Default().List() {
				fmt.Fprintf(out, "%-20s %s\n", info.Name, info.Description)
				if verbose {
					writeOptions(out, info.Options)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show operation options")
	return cmd
}
