/*
Package gui owns the GUI session: which project is shown and which sandbox
shows it.

Handler resolves the active project (query parameter, then the control
channel's cached value, then the next connection event), reflects it in the
visible location, and asks the Selector to load it. The Selector replaces
the live sandbox and walks the fallback chain

	/projects/<name>/main.html   posted into the sandbox template
	/projects/<name>/sketch.js   injected into the configured section
	/gui/p5-sketches/sketch.js   default sketch, last resort

after the baseline scripts are in place.

All session state is guarded by one mutex. Chain steps run on their own
goroutine and commit through Handler.Commit with the generation they were
started under; once a newer selection has bumped the generation their
results are dropped.
*/
package gui
