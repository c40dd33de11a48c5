// Package workflow loads graph descriptions from files and turns them into
// framegraph graphs.
//
// Three formats are accepted, chosen by file extension. JSON and YAML share
// one shape:
//
//	name: stabilize
//	vars:
//	  plates: /data/shot010
//	nodes:
//	  - id: in
//	    type: video_input
//	    params: {path: "${plates}/plate"}
//	  - id: out
//	    type: video_output
//	    params: {path: out}
//	edges:
//	  - {source: in, source_port: video, target: out, target_port: video}
//
// The compact connection form conns: [{sn, sp, tn, tp}] is accepted in place
// of edges. HCL files declare node and edge blocks:
//
//	node "in" {
//	  type   = "video_input"
//	  params = { path = "${var.plates}/plate" }
//	}
//	edge {
//	  from = "in.video"
//	  to   = "out.video"
//	}
//
// A typical caller loads, overrides, expands and builds:
//
//	doc, err := workflow.Load(path, workflow.WithVars(cliVars))
//	err = workflow.ApplyOverrides(doc, []string{"out.bit_depth=16"})
//	doc, err = workflow.Expand(doc, cliVars)
//	g, err := workflow.Build(doc, types)
package workflow
