// Package projects indexes the IDE's project tree on disk.
//
// A project is a top-level directory under the projects root. Its page is
// main.html and its sketches are the .js files next to it; both layouts are
// glob patterns relative to the root, so nested conventions can be
// configured without code changes.
package projects
