package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectLocators(t *testing.T) {
	tests := []struct {
		project string
		page    string
		sketch  string
	}{
		{"foo", "/projects/foo/main.html", "/projects/foo/sketch.js"},
		{"my project", "/projects/my%20project/main.html", "/projects/my%20project/sketch.js"},
		{"a/b", "/projects/a%2Fb/main.html", "/projects/a%2Fb/sketch.js"},
		{"..", "/projects/%2E%2E/main.html", "/projects/%2E%2E/sketch.js"},
	}

	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			assert.Equal(t, tt.page, ProjectPage(tt.project))
			assert.Equal(t, tt.sketch, ProjectSketch(tt.project, "sketch"))
		})
	}
}
