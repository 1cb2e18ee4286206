// Package main runs the sketch GUI host next to the Bela IDE.
//
// The host resolves the active project, runs its sketch in an isolated
// sandbox and reports the result to viewers:
//
//	IDE control socket → GUI handler → sandbox (goja + document)
//	                          ↑
//	              /projects, /js, /gui/p5-sketches
//
// Configuration comes from environment variables, then CONFIG_FILE
// (YAML or TOML), then flags:
//
//	./server -port 8000 -control ws://127.0.0.1:5555/gui-control
//	./server -control-enabled=false -projects ./projects -dev
//
// SIGINT and SIGTERM close the GUI session, then drain HTTP.
package main
