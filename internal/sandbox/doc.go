/*
Package sandbox provides the isolated rendering surface for project sketches.

# Overview

A sandbox Context is the Go counterpart of a nested browsing context. It
pairs a goja JavaScript runtime (own global scope) with its own HTML
document. Each Context is attached under a named Host container, which shows
a placeholder until the first sandbox replaces it.

# Lifecycle

 1. Create: take a fresh runtime and attach under the host
 2. Open: load the static template surface and install globals
 3. LoadBaseline: inject the support scripts, strictly in order
 4. InjectScript / PostMessage: project content
 5. Destroy: detach from the host and close the runtime

A Context is never reused. Destroy is final and every later mutation fails
with ErrDestroyed, so a completion that arrives after its sandbox was
replaced cannot touch the replacement.

# Security Model

Sandboxed code cannot reach require, process or module. Timers are inert.
Each Execute is bounded by the configured timeout and by context
cancellation through goja's interrupt.

# Usage Example

	host := sandbox.NewHost("gui")
	pool, _ := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	sb, err := sandbox.Create(ctx, host, pool, sandbox.Options{})
	if err != nil {
		return err
	}
	defer sb.Destroy()

	sb.Open()
	err = sb.LoadBaseline(ctx, loader, []string{"/js/p5.min.js"})
*/
package sandbox
