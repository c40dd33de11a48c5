package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/event"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
	"github.com/randalmurphal/framegraph/pkg/framegraph/spill"
)

type runFlags struct {
	workflowFlags
	spill        string
	otlpEndpoint string
	progress     int
	quiet        bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a workflow file",
		Example: `  framegraph run stabilize.json
  framegraph run stabilize.yaml --set in.path=plates/shot010 --set out.bit_depth=16
  framegraph run average.hcl --var root=/mnt/plates -d /mnt/project --spill sqlite:/tmp/spill.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, g, f, args[0])
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&f.spill, "spill", "", "Store materialized streams outside memory: memory | sqlite:PATH")
	cmd.Flags().StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "Export run traces over OTLP/HTTP to host:port or a URL")
	cmd.Flags().IntVar(&f.progress, "progress-every", 100, "Report progress every N frames")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print errors")
	return cmd
}

func runWorkflow(cmd *cobra.Command, g *globalFlags, f *runFlags, path string) error {
	stderr := &lockedWriter{w: cmd.ErrOrStderr()}
	logger, err := newLogger(g.logLevel, g.logFormat, stderr)
	if err != nil {
		return exitError(exitUsage, "%v", err)
	}

	store, err := openSpill(f.spill)
	if err != nil {
		return exitError(exitUsage, "%v", err)
	}
	if store != nil {
		defer store.Close()
	}

	plan, err := f.compile(path, stderr)
	if err != nil {
		return err
	}
	defer plan.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []framegraph.RunOption{framegraph.WithProgressInterval(f.progress)}
	if store != nil {
		opts = append(opts, framegraph.WithSpill(store, media.ImageCodec{}))
	}
	if f.otlpEndpoint != "" {
		shutdown, err := setupTracing(ctx, f.otlpEndpoint)
		if err != nil {
			return exitError(exitUsage, "tracing: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("trace export failed", "error", err)
			}
		}()
		opts = append(opts, framegraph.WithTracing(true))
	}

	var bus *event.LocalBus
	if !f.quiet {
		bus = event.NewBus(event.DefaultBusConfig)
		bus.SubscribeAll(progressPrinter(stderr))
		opts = append(opts, framegraph.WithEventBus(bus))
	}

	res, err := plan.Run(framegraph.NewContext(ctx, framegraph.WithLogger(logger)), opts...)
	if bus != nil {
		// Close drains pending events so the summary prints last.
		_ = bus.Close()
	}
	if res != nil && !f.quiet {
		printSummary(cmd.OutOrStdout(), res)
	}
	if err != nil {
		return exitError(runExitCode(err), "run failed: %v", err)
	}
	return nil
}

// openSpill parses the --spill flag. An empty value keeps streams in memory
// without a store.
func openSpill(spec string) (spill.Store, error) {
	switch {
	case spec == "":
		return nil, nil
	case spec == "memory":
		return spill.NewMemoryStore(), nil
	case strings.HasPrefix(spec, "sqlite:"):
		path := strings.TrimPrefix(spec, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("spill: sqlite needs a path, as in sqlite:/tmp/spill.db")
		}
		return spill.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("spill %q: must be memory or sqlite:PATH", spec)
	}
}

func progressPrinter(w io.Writer) event.HandlerFunc {
	return func(_ context.Context, evt event.Event) error {
		switch p := evt.Data().(type) {
		case event.RunPayload:
			switch evt.Type() {
			case event.TypeRunStarted:
				fmt.Fprintf(w, "run %s: %d stages\n", p.RunID, p.Stages)
			case event.TypeRunCompleted:
				fmt.Fprintf(w, "run %s: %s\n", p.RunID, p.Status)
			}
		case event.StagePayload:
			switch evt.Type() {
			case event.TypeStageStarted:
				fmt.Fprintf(w, "stage %d %s: %s\n", p.Stage, p.Mode, strings.Join(p.Nodes, ", "))
			case event.TypeStageProgress:
				fmt.Fprintf(w, "stage %d: %d frames\n", p.Stage, p.Frames)
			case event.TypeStageCompleted:
				fmt.Fprintf(w, "stage %d: done, %d frames\n", p.Stage, p.Frames)
			case event.TypeStageFailed:
				fmt.Fprintf(w, "stage %d: failed: %s\n", p.Stage, p.Error)
			}
		}
		return nil
	}
}

func printSummary(w io.Writer, res *framegraph.RunResult) {
	fmt.Fprintf(w, "%s in %s: %d frames", res.Status, res.Duration.Round(time.Millisecond), res.Frames)
	if res.MaterializedFrames > 0 {
		fmt.Fprintf(w, ", %d materialized", res.MaterializedFrames)
	}
	fmt.Fprintln(w)
	for _, s := range res.Stages {
		fmt.Fprintf(w, "  stage %d %-9s %-9s %5d frames  %s\n",
			s.Index, s.Mode, s.Status, s.Frames, strings.Join(s.Nodes, ", "))
	}
}
