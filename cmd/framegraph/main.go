// Command framegraph validates, plans and runs video processing workflows.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitUsage)
	}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "framegraph",
		Short:        "Video processing graph engine",
		Long:         "framegraph runs node graphs over frame sequences, streaming where possible.",
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate(fmt.Sprintf("framegraph version %s\n", version))
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level: debug | info | warn | error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format: text | json")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(),
		newPlanCmd(),
		newNodesCmd(),
		newOpsCmd(),
	)
	return root
}
