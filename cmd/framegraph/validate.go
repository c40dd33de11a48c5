package main

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newValidateCmd() *cobra.Command {
	f := &workflowFlags{}
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate workflow files without executing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(cmd, f, args)
		},
	}
	f.register(cmd, false)
	return cmd
}

type validation struct {
	errs bytes.Buffer
	err  error
}

// validateFiles compiles every file concurrently and reports them in
// argument order.
func validateFiles(cmd *cobra.Command, f *workflowFlags, paths []string) error {
	results := make([]validation, len(paths))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		eg.Go(func() error {
			r := &results[i]
			plan, err := f.compile(path, &r.errs)
			if err != nil {
				r.err = err
				return nil
			}
			r.err = plan.Close()
			return nil
		})
	}
	_ = eg.Wait()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	failed := 0
	for i, path := range paths {
		r := &results[i]
		if r.err == nil {
			fmt.Fprintf(out, "ok    %s\n", path)
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL  %s\n", path)
		if r.errs.Len() > 0 {
			_, _ = r.errs.WriteTo(errOut)
		} else {
			fmt.Fprintf(errOut, "%s: %v\n", path, r.err)
		}
	}
	if failed > 0 {
		return exitError(exitUsage, "%d of %d workflows failed validation", failed, len(paths))
	}
	return nil
}
