package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	// File is an optional YAML or TOML file applied over the environment
	File string `envconfig:"CONFIG_FILE" yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Control   ControlConfig   `yaml:"control"`
	Content   ContentConfig   `yaml:"content"`
	GUI       GUIConfig       `yaml:"gui"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`

	AllowOrigins    []string      `envconfig:"CORS_ORIGINS" default:"*" yaml:"allow_origins"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout"`
}

// ControlConfig holds the IDE control channel configuration.
type ControlConfig struct {
	URL          string        `envconfig:"CONTROL_URL" default:"ws://127.0.0.1:5555/gui-control" yaml:"url"`
	Enabled      bool          `envconfig:"CONTROL_ENABLED" default:"true" yaml:"enabled"`
	ReconnectMin time.Duration `envconfig:"CONTROL_RECONNECT_MIN" default:"500ms" yaml:"reconnect_min"`
	ReconnectMax time.Duration `envconfig:"CONTROL_RECONNECT_MAX" default:"30s" yaml:"reconnect_max"`
}

// ContentConfig holds project content fetch and serving configuration.
type ContentConfig struct {
	BaseURL     string        `envconfig:"CONTENT_BASE_URL" default:"http://127.0.0.1:8000" yaml:"base_url"`
	Timeout     time.Duration `envconfig:"CONTENT_TIMEOUT" default:"10s" yaml:"timeout"`
	Retries     int           `envconfig:"CONTENT_RETRIES" default:"1" yaml:"retries"`
	RPS         float64       `envconfig:"CONTENT_RPS" default:"0" yaml:"rps"`
	ProjectsDir string        `envconfig:"PROJECTS_DIR" default:"/root/Bela/projects" yaml:"projects_dir"`
	StaticDir   string        `envconfig:"STATIC_DIR" default:"./public" yaml:"static_dir"`

	BreakerThreshold uint32        `envconfig:"CONTENT_BREAKER_THRESHOLD" default:"5" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `envconfig:"CONTENT_BREAKER_COOLDOWN" default:"5s" yaml:"breaker_cooldown"`
}

// GUIConfig holds project selection and sandbox loading conventions.
type GUIConfig struct {
	HostID           string   `envconfig:"GUI_HOST_ID" default:"gui" yaml:"host_id"`
	StartURL         string   `envconfig:"GUI_START_URL" default:"http://127.0.0.1:8000/gui/" yaml:"start_url"`
	Baseline         []string `envconfig:"GUI_BASELINE" default:"/js/p5.min.js,/js/p5.dom.min.js" yaml:"baseline"`
	SketchName       string   `envconfig:"GUI_SKETCH_NAME" default:"sketch" yaml:"sketch_name"`
	SketchSection    string   `envconfig:"GUI_SKETCH_SECTION" default:"head" yaml:"sketch_section"`
	DefaultSketch    string   `envconfig:"GUI_DEFAULT_SKETCH" default:"/gui/p5-sketches/sketch.js" yaml:"default_sketch"`
	EphemeralProject string   `envconfig:"GUI_EPHEMERAL_PROJECT" default:"exampleTempProject" yaml:"ephemeral_project"`
	NoProject        string   `envconfig:"GUI_NO_PROJECT" default:"null" yaml:"no_project"`
	PlaceholderHTML  string   `envconfig:"GUI_PLACEHOLDER_HTML" yaml:"placeholder_html"`
}

// SandboxConfig holds sandbox runtime limits.
type SandboxConfig struct {
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s" yaml:"timeout"`
	MaxMemoryMB   int64         `envconfig:"SANDBOX_MAX_MEMORY_MB" default:"50" yaml:"max_memory_mb"`
	PoolSize      int           `envconfig:"SANDBOX_POOL_SIZE" default:"2" yaml:"pool_size"`
	EnableConsole bool          `envconfig:"SANDBOX_CONSOLE" default:"true" yaml:"enable_console"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables, then applies
// CONFIG_FILE if set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.File != "" {
		if err := ApplyFile(&cfg, cfg.File); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowOrigins:    []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Control: ControlConfig{
			URL:          "ws://127.0.0.1:5555/gui-control",
			Enabled:      true,
			ReconnectMin: 500 * time.Millisecond,
			ReconnectMax: 30 * time.Second,
		},
		Content: ContentConfig{
			BaseURL:     "http://127.0.0.1:8000",
			Timeout:     10 * time.Second,
			Retries:     1,
			ProjectsDir: "/root/Bela/projects",
			StaticDir:   "./public",

			BreakerThreshold: 5,
			BreakerCooldown:  5 * time.Second,
		},
		GUI: GUIConfig{
			HostID:           "gui",
			StartURL:         "http://127.0.0.1:8000/gui/",
			Baseline:         []string{"/js/p5.min.js", "/js/p5.dom.min.js"},
			SketchName:       "sketch",
			SketchSection:    "head",
			DefaultSketch:    "/gui/p5-sketches/sketch.js",
			EphemeralProject: "exampleTempProject",
			NoProject:        "null",
		},
		Sandbox: SandboxConfig{
			Timeout:       5 * time.Second,
			MaxMemoryMB:   50,
			PoolSize:      2,
			EnableConsole: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
