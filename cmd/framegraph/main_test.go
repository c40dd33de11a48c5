package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

const stabilizeWorkflow = `{
  "name": "stabilize",
  "vars": {"plates": "plates"},
  "nodes": [
    {"id": "in", "type": "video_input", "params": {"path": "${plates}"}},
    {"id": "track", "type": "feature_tracker"},
    {"id": "stab", "type": "stabilizer"},
    {"id": "warp", "type": "apply_transform"},
    {"id": "out", "type": "video_output", "params": {"path": "out"}}
  ],
  "conns": [
    {"sn": "in", "sp": "video", "tn": "track", "tp": "video"},
    {"sn": "track", "sp": "track_data", "tn": "stab", "tp": "track1"},
    {"sn": "in", "sp": "props", "tn": "stab", "tp": "props"},
    {"sn": "in", "sp": "video", "tn": "warp", "tp": "video_in"},
    {"sn": "stab", "sp": "transforms", "tn": "warp", "tp": "transforms"},
    {"sn": "warp", "sp": "video_out", "tn": "out", "tp": "video"}
  ]
}`

// project writes a workflow and five frames of a moving dot into a temp dir
// and returns the workflow path.
func project(t *testing.T, workflow string) string {
	t.Helper()
	dir := t.TempDir()
	sink, err := media.NewDirSink(filepath.Join(dir, "plates"), 8)
	require.NoError(t, err)
	synth := &media.SyntheticSource{Width: 32, Height: 16, Count: 5, X: 8, Y: 8, VelX: 2, Radius: 1.5}
	for i := range 5 {
		require.NoError(t, sink.Write(i, synth.Render(i)))
	}
	path := filepath.Join(dir, "stabilize.json")
	require.NoError(t, os.WriteFile(path, []byte(workflow), 0o644))
	return path
}

func execute(args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if err != nil {
		return -1
	}
	return exitSuccess
}

func TestNodesCmd(t *testing.T) {
	out, _, err := execute("nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "video_input")
	assert.Contains(t, out, "roi:scalar-properties?")

	out, _, err = execute("nodes", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "frame_average (composite, streaming)")
	assert.Contains(t, out, "comp_mode (string) default on_black one of [on_black on_white unpremult]")
}

func TestOpsCmd(t *testing.T) {
	out, _, err := execute("ops", "--verbose")
	require.NoError(t, err)
	for _, name := range []string{"comp_on_white", "comp_on_black", "refine_alpha", "divide_alpha", "unpremult_on_white"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "blur_size (float) default 5")
}

func TestPlanCmd(t *testing.T) {
	path := project(t, stabilizeWorkflow)

	out, _, err := execute("plan", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "stage 0 streaming: in, track", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "stage 1 batch: stab"), lines[1])
	assert.Contains(t, lines[2], "rescans in")

	assert.NoDirExists(t, filepath.Join(filepath.Dir(path), "out"), "planning writes nothing")
}

func TestRunCmd(t *testing.T) {
	path := project(t, stabilizeWorkflow)
	dir := filepath.Dir(path)

	out, errOut, err := execute("run", path)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "completed")
	assert.Contains(t, errOut, "stage 2 streaming: warp, out")

	for i := range 5 {
		frame, err := media.ReadPNG(filepath.Join(dir, "out", fmt.Sprintf("frame_%06d.png", i)))
		require.NoError(t, err)
		assert.Equal(t, float32(1), frame.At(8, 8, 0), "frame %d: dot pinned", i)
	}
}

func TestRunCmd_Flags(t *testing.T) {
	tests := []struct {
		name  string
		args  func(dir string) []string
		out   string
		quiet bool
	}{
		{"override", func(string) []string { return []string{"--set", "out.path=renders"} }, "renders", false},
		{"variable", func(string) []string { return []string{"--var", "plates=plates", "--set", "out.path=v"} }, "v", false},
		{"var file", func(dir string) []string {
			vf := filepath.Join(dir, "vars.yaml")
			if err := os.WriteFile(vf, []byte("plates: plates\n"), 0o644); err != nil {
				panic(err)
			}
			return []string{"--var-file", vf, "--set", "out.path=from_file"}
		}, "from_file", false},
		{"hcl var file", func(dir string) []string {
			vf := filepath.Join(dir, "vars.hcl")
			if err := os.WriteFile(vf, []byte("plates = \"plates\"\n"), 0o644); err != nil {
				panic(err)
			}
			return []string{"--var-file", vf, "--set", "out.path=from_hcl"}
		}, "from_hcl", false},
		{"memory spill", func(string) []string { return []string{"--spill", "memory", "-q"} }, "out", true},
		{"sqlite spill", func(dir string) []string {
			return []string{"--spill", "sqlite:" + filepath.Join(dir, "spill.db"), "--log-format", "json"}
		}, "out", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := project(t, stabilizeWorkflow)
			dir := filepath.Dir(path)
			args := append([]string{"run", path, "-d", dir}, tt.args(dir)...)

			out, errOut, err := execute(args...)
			require.NoError(t, err, errOut)
			assert.FileExists(t, filepath.Join(dir, tt.out, "frame_000004.png"))
			if tt.quiet {
				assert.Empty(t, out)
			}
		})
	}
}

func TestRunCmd_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args func(path string) []string
		code int
	}{
		{"missing file", func(p string) []string { return []string{"run", p + ".missing.json"} }, exitUsage},
		{"bad override", func(p string) []string { return []string{"run", p, "--set", "nope.path=x"} }, exitUsage},
		{"invalid config", func(p string) []string { return []string{"run", p, "--set", "stab.mode=affine"} }, exitUsage},
		{"bad spill", func(p string) []string { return []string{"run", p, "--spill", "s3:bucket"} }, exitUsage},
		{"missing var file", func(p string) []string { return []string{"run", p, "--var-file", p + ".vars.yaml"} }, exitUsage},
		{"var file format", func(p string) []string { return []string{"run", p, "--var-file", p + ".vars.toml"} }, exitUsage},
		{"bad log level", func(p string) []string { return []string{"run", p, "--log-level", "loud"} }, exitUsage},
		{"missing dir", func(p string) []string { return []string{"run", p, "-d", p + ".nowhere"} }, exitUsage},
		{"runtime failure", func(p string) []string { return []string{"run", p, "--set", "stab.ref_frame=99"} }, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := project(t, stabilizeWorkflow)
			_, _, err := execute(tt.args(path)...)
			assert.Equal(t, tt.code, exitCode(err), "%v", err)
		})
	}
}

func TestValidateCmd(t *testing.T) {
	good := project(t, stabilizeWorkflow)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
nodes:
  - {id: in, type: video_input, params: {source: nope}}
  - {id: avg, type: frame_average}
edges:
  - {source: in, source_port: props, target: avg, target_port: video}
`), 0o644))

	out, errOut, err := execute("validate", good, bad)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, out, "ok    "+good)
	assert.Contains(t, out, "FAIL  "+bad)
	assert.Contains(t, errOut, bad+": ")

	out, _, err = execute("validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok    "+good)
}

func TestRunExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"cancelled", fmt.Errorf("run: %w", framegraph.ErrCancelled), exitCancelled},
		{"context", context.Canceled, exitCancelled},
		{"panic", &framegraph.PanicError{NodeID: "n", Value: "boom"}, exitInvariant},
		{"invariant", &framegraph.InvariantError{Op: "plan", Detail: "stage out of order"}, exitInvariant},
		{"user", errors.New("bad frame"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runExitCode(tt.err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("debug", "json", &buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = newLogger("info", "xml", &buf)
	assert.Error(t, err)
	_, err = newLogger("chatty", "text", &buf)
	assert.Error(t, err)
}
