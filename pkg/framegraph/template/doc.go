// Package template expands ${var} placeholders in workflow parameters.
//
// Workflow descriptions declare defaults under "vars" and the CLI overrides
// them with --var name=value:
//
//	nodes:
//	  - id: src
//	    type: video_input
//	    params:
//	      path: ${shots}/plate_v003
//	      first_frame: ${start}
//
// A parameter that is exactly one placeholder takes the variable's value
// with its type, so first_frame above stays an integer.
package template
