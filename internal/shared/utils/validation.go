package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Size limits (in bytes)
const (
	MaxJSONSize       = 64 * 1024 // request bodies
	MaxProjectNameLen = 256
	MaxXPathLen       = 1024
	MaxURLLen         = 2048
)

// ValidateProjectName checks a project name received from a client.
// Names are path segments, so separators and control characters are
// rejected.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name required")
	}
	if len(name) > MaxProjectNameLen {
		return fmt.Errorf("project name exceeds %d bytes", MaxProjectNameLen)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("project name is not valid UTF-8")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("project name must not contain path separators")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("project name contains control characters")
		}
	}
	return nil
}

// ValidateXPath checks the size of an XPath expression
func ValidateXPath(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("xpath parameter required")
	}
	if len(expr) > MaxXPathLen {
		return fmt.Errorf("xpath exceeds %d bytes", MaxXPathLen)
	}
	return nil
}

// ValidateURL checks the size of a location
func ValidateURL(raw string) error {
	if len(raw) > MaxURLLen {
		return fmt.Errorf("url exceeds %d bytes", MaxURLLen)
	}
	return nil
}
