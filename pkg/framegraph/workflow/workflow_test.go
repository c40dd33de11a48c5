package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
	"github.com/randalmurphal/framegraph/pkg/framegraph/nodes"
	"github.com/randalmurphal/framegraph/pkg/framegraph/template"
	"github.com/randalmurphal/framegraph/pkg/framegraph/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonWorkflow = `{
  "name": "copy",
  "nodes": [
    {"id": "in", "type": "video_input", "params": {"source": "synth"}},
    {"id": "out", "type": "video_output", "params": {"sink": "collect", "bit_depth": 8}}
  ],
  "edges": [
    {"source": "in", "source_port": "video", "target": "out", "target_port": "video"}
  ]
}`

const yamlWorkflow = `
name: copy
nodes:
  - id: in
    type: video_input
    params: {source: synth}
  - id: out
    type: video_output
    params: {sink: collect, bit_depth: 8}
edges:
  - {source: in, source_port: video, target: out, target_port: video}
`

const hclWorkflow = `
name = "copy"

node "in" {
  type   = "video_input"
  params = { source = "synth" }
}

node "out" {
  type = "video_output"
  params = {
    sink      = "collect"
    bit_depth = 8
  }
}

edge {
  from = "in.video"
  to   = "out.video"
}
`

var copyEdges = []workflow.EdgeSpec{{Source: "in", SourcePort: "video", Target: "out", TargetPort: "video"}}

// TestParse verifies the three formats describe the same graph.
func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		format workflow.Format
		data   string
	}{
		{"json", workflow.FormatJSON, jsonWorkflow},
		{"yaml", workflow.FormatYAML, yamlWorkflow},
		{"hcl", workflow.FormatHCL, hclWorkflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := workflow.Parse([]byte(tt.data), tt.format, "copy."+string(tt.format))
			require.NoError(t, err)

			assert.Equal(t, "copy", doc.Name)
			require.Len(t, doc.Nodes, 2)
			assert.Equal(t, "video_input", doc.Nodes[0].Type)
			assert.Equal(t, "synth", doc.Nodes[0].Params["source"])
			assert.Equal(t, "out", doc.Nodes[1].ID)
			assert.EqualValues(t, 8, doc.Nodes[1].Params["bit_depth"])
			assert.Equal(t, copyEdges, doc.Edges)
		})
	}
}

// TestParse_Conns verifies the compact connection form becomes edges.
func TestParse_Conns(t *testing.T) {
	doc, err := workflow.ParseJSON([]byte(`{
	  "nodes": [{"id": "in", "type": "video_input"}, {"id": "out", "type": "video_output"}],
	  "conns": [{"sn": "in", "sp": "video", "tn": "out", "tp": "video"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, copyEdges, doc.Edges)
	assert.Empty(t, doc.Conns)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format workflow.Format
		data   string
	}{
		{"json syntax", workflow.FormatJSON, `{"nodes": [`},
		{"json unknown field", workflow.FormatJSON, `{"nodes": [{"id": "a", "type": "t"}], "wires": []}`},
		{"no nodes", workflow.FormatJSON, `{"name": "empty"}`},
		{"missing type", workflow.FormatYAML, "nodes:\n  - id: a\n"},
		{"incomplete edge", workflow.FormatYAML, "nodes:\n  - {id: a, type: t}\nedges:\n  - {source: a}\n"},
		{"yaml unknown field", workflow.FormatYAML, "nodes:\n  - {id: a, type: t, colour: red}\n"},
		{"hcl syntax", workflow.FormatHCL, `node "a" {`},
		{"hcl endpoint", workflow.FormatHCL, "node \"a\" {\n  type = \"t\"\n}\nedge {\n  from = \"a\"\n  to = \"b.in\"\n}\n"},
		{"hcl undefined var", workflow.FormatHCL, "node \"a\" {\n  type = \"t\"\n  params = { p = var.nope }\n}\n"},
		{"unknown format", workflow.Format("toml"), `nodes = []`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.Parse([]byte(tt.data), tt.format, "wf")
			require.Error(t, err)

			var fe *workflow.FormatError
			require.True(t, errors.As(err, &fe), "got %T: %v", err, err)
			assert.Equal(t, fgerrors.CategoryUser, fgerrors.Categorize(err))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"copy.json": jsonWorkflow,
		"copy.yml":  yamlWorkflow,
		"copy.hcl":  hclWorkflow,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		doc, err := workflow.Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, copyEdges, doc.Edges, name)
	}

	_, err := workflow.Load(filepath.Join(dir, "missing.json"))
	var ioErr *fgerrors.IOError
	assert.True(t, errors.As(err, &ioErr))

	_, err = workflow.Load(filepath.Join(dir, "copy.txt"))
	assert.True(t, errors.Is(err, workflow.ErrUnknownFormat))
}

// TestParse_HCLVars verifies var references resolve from file vars and
// caller vars, keeping number types.
func TestParse_HCLVars(t *testing.T) {
	src := []byte(`
vars = {
  start = 1
  root  = "/plates"
}

node "in" {
  type = "video_input"
  params = {
    path        = "${var.root}/shot010"
    first_frame = var.start
    literal     = "$${keep}"
  }
}
`)
	doc, err := workflow.Parse(src, workflow.FormatHCL, "vars.hcl")
	require.NoError(t, err)
	params := doc.Nodes[0].Params
	assert.Equal(t, "/plates/shot010", params["path"])
	assert.Equal(t, 1, params["first_frame"])
	assert.Equal(t, "${keep}", params["literal"])
	assert.Equal(t, map[string]any{"start": 1, "root": "/plates"}, doc.Vars)

	doc, err = workflow.Parse(src, workflow.FormatHCL, "vars.hcl", workflow.WithVars(map[string]any{"start": 7}))
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Nodes[0].Params["first_frame"])
}

func TestApplyOverrides(t *testing.T) {
	newDoc := func() *workflow.Document {
		return &workflow.Document{Nodes: []workflow.NodeSpec{
			{ID: "in", Type: "video_input", Params: map[string]any{
				"path": "a", "first_frame": 0, "sigma": 2.0, "loop": false,
			}},
			{ID: "out", Type: "video_output"},
		}}
	}

	tests := []struct {
		name     string
		override string
		node     string
		param    string
		want     any
	}{
		{"string kept", "in.path=b/c=d", "in", "path", "b/c=d"},
		{"int kept", "in.first_frame=12", "in", "first_frame", 12},
		{"float kept", "in.sigma=3", "in", "sigma", 3.0},
		{"bool kept", "in.loop=yes", "in", "loop", true},
		{"new int", "out.bit_depth=16", "out", "bit_depth", 16},
		{"new float", "out.gamma=2.2", "out", "gamma", 2.2},
		{"new string", "out.path=renders", "out", "path", "renders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDoc()
			require.NoError(t, workflow.ApplyOverrides(doc, []string{tt.override}))
			n, ok := doc.Node(tt.node)
			require.True(t, ok)
			assert.Equal(t, tt.want, n.Params[tt.param])
		})
	}

	doc := newDoc()
	err := workflow.ApplyOverrides(doc, []string{
		"no-equals",
		"nodot=1",
		"ghost.path=x",
		"in.first_frame=ten",
		"in.loop=maybe",
		"in.path=ok",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrInvalidOverride))
	assert.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 5)
	assert.Equal(t, "ok", doc.Nodes[0].Params["path"], "valid overrides still apply")
	assert.Equal(t, 0, doc.Nodes[0].Params["first_frame"])
}

func TestExpand(t *testing.T) {
	doc, err := workflow.ParseYAML([]byte(`
vars:
  root: /plates
  start: 3
nodes:
  - id: in
    type: video_input
    params:
      path: ${root}/shot010
      first_frame: ${start}
`))
	require.NoError(t, err)

	out, err := workflow.Expand(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "/plates/shot010", out.Nodes[0].Params["path"])
	assert.Equal(t, 3, out.Nodes[0].Params["first_frame"])
	assert.Equal(t, "${root}/shot010", doc.Nodes[0].Params["path"], "input document is not modified")

	out, err = workflow.Expand(doc, map[string]any{"root": "/mnt"})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/shot010", out.Nodes[0].Params["path"])

	delete(doc.Vars, "root")
	_, err = workflow.Expand(doc, nil)
	var undef *template.UndefinedVariableError
	require.True(t, errors.As(err, &undef))
	assert.Equal(t, []string{"root"}, undef.Names)
}

// TestBuild verifies a loaded workflow compiles and runs.
func TestBuild(t *testing.T) {
	sink := &media.CollectSink{}
	types := framegraph.NewTypeRegistry()
	require.NoError(t, nodes.RegisterBuiltins(types, nodes.Env{
		Sources: map[string]framegraph.Source{
			"synth": &media.SyntheticSource{Width: 8, Height: 8, Count: 4, X: 4, Y: 4, Radius: 1},
		},
		Sinks: map[string]framegraph.Sink{"collect": sink},
	}))

	doc, err := workflow.ParseYAML([]byte(yamlWorkflow))
	require.NoError(t, err)
	g, err := workflow.Build(doc, types)
	require.NoError(t, err)
	assert.Equal(t, "copy", g.Name())

	plan, err := g.Compile()
	require.NoError(t, err)
	res, err := plan.Run(framegraph.NewContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, framegraph.RunCompleted, res.Status)
	assert.Equal(t, []int{0, 1, 2, 3}, sink.Indices)

	_, err = workflow.Build(&workflow.Document{}, types)
	assert.Error(t, err)
}

func TestParseVars(t *testing.T) {
	vars, err := workflow.ParseVars([]string{"root=/mnt/plates", "start=4", "gain=0.5", "dry=true", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"root": "/mnt/plates", "start": 4, "gain": 0.5, "dry": true, "empty": "",
	}, vars)

	_, err = workflow.ParseVars([]string{"novalue", "=x"})
	assert.True(t, errors.Is(err, workflow.ErrInvalidOverride))
}
