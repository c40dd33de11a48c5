// Package media provides the image, track and transform types carried on
// framegraph ports, plus frame sources and sinks backed by memory or PNG
// frame directories.
//
// Samples are linear float32 in [0, 1]. Codecs for spilling frame streams
// live here too, so the engine itself stays payload-agnostic.
package media
