package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDestroyed     = errors.New("sandbox destroyed")
	ErrNotOpen       = errors.New("sandbox template not loaded")
	ErrHostOccupied  = errors.New("host already has a live sandbox")
	ErrNoSection     = errors.New("document section not found")
	ErrRuntimeClosed = errors.New("runtime closed")
)

// Config defines sandbox runtime configuration
type Config struct {
	MaxMemoryMB   int64         // Maximum heap size in MB
	Timeout       time.Duration // Per-script execution timeout
	EnableConsole bool          // Capture console.log/warn/error
}

// Result holds execution result
type Result struct {
	Value    interface{}
	Console  []LogEntry
	Duration time.Duration
	Error    error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Source  string    `json:"source,omitempty"`
	Time    time.Time `json:"time"`
}

// DOMChange represents a DOM modification made by sandboxed code
type DOMChange struct {
	Type     string      `json:"type"`
	Selector string      `json:"selector"`
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

// RuntimeSource hands out fresh runtimes
type RuntimeSource interface {
	Acquire(ctx context.Context) (*Runtime, error)
}

// ScriptLoader fetches a script and injects it into a sandbox section
type ScriptLoader interface {
	Load(ctx context.Context, src, section string, target *Context) error
}

// DefaultConfig returns the default runtime limits
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:   50,
		Timeout:       5 * time.Second,
		EnableConsole: true,
	}
}
