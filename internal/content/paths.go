package content

import (
	"net/url"
	"strings"
)

// ProjectPage is the locator of a project's main page
func ProjectPage(project string) string {
	return "/projects/" + segment(project) + "/main.html"
}

// ProjectSketch is the locator of a project's sketch script
func ProjectSketch(project, sketch string) string {
	return "/projects/" + segment(project) + "/" + segment(sketch) + ".js"
}

// segment escapes a name into a single path segment. Dot segments are
// percent-encoded so reference resolution cannot climb out of /projects.
func segment(name string) string {
	s := url.PathEscape(name)
	if s == "." || s == ".." {
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return s
}
