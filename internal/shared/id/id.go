// Package id provides ULID-based identifiers for the GUI host.
//
// Every identifier is a prefixed ULID so that log lines stay readable and
// identifiers sort by creation time:
//   - sbx_*: sandbox handles
//   - sel_*: selection runs (one per project switch)
//   - view_*: websocket viewer connections
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SandboxID identifies one isolated sandbox instance
type SandboxID string

// SelectionID identifies one run of the content selection chain
type SelectionID string

// ViewerID identifies a connected state viewer
type ViewerID string

const (
	SandboxPrefix   = "sbx"
	SelectionPrefix = "sel"
	ViewerPrefix    = "view"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSandboxID generates a new sandbox handle ID
func NewSandboxID() SandboxID {
	return SandboxID(Default().GenerateWithPrefix(SandboxPrefix))
}

// NewSelectionID generates a new selection run ID
func NewSelectionID() SelectionID {
	return SelectionID(Default().GenerateWithPrefix(SelectionPrefix))
}

// NewViewerID generates a new viewer connection ID
func NewViewerID() ViewerID {
	return ViewerID(Default().GenerateWithPrefix(ViewerPrefix))
}

func (id SandboxID) String() string   { return string(id) }
func (id SelectionID) String() string { return string(id) }
func (id ViewerID) String() string    { return string(id) }

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
