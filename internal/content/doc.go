// Package content fetches project presentation resources from the IDE's
// static server and hands them to sandboxes.
//
// Client wraps resty over a retrying transport with an optional token bucket.
// PageFetcher returns page markup; ScriptLoader fetches a script and injects
// it into a sandbox section. A 404 surfaces as ErrNotFound and an HTML body
// served where a script was expected as ErrUnexpectedType, so callers can
// fall back to the next candidate.
//
// Project names are escaped into a single path segment, so a name never
// addresses a nested directory: "a/b" maps to /projects/a%2Fb/main.html
// rather than /projects/a/b/main.html, and "." or ".." are sent as %2E
// segments. Names containing a slash therefore only resolve on a static
// server that decodes %2F back into a directory name.
package content
