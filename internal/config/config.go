package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/hooks/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "hooks.json"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log handler format.
	DefaultLogFormat = "text"

	// DefaultMaxPasses is the default render pass budget of one flush.
	DefaultMaxPasses = 1000

	// DefaultInspectorAddr is the default inspector listen address.
	DefaultInspectorAddr = "localhost:7070"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "hooks"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "hooks"

	// DefaultExportPrefix is the default object key prefix for event logs.
	DefaultExportPrefix = "hooks/events"
)

// Config represents the complete hooks.json configuration.
type Config struct {
	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Host contains render loop configuration.
	Host HostConfig `json:"host,omitempty"`

	// Inspector contains the HTTP inspector configuration.
	Inspector InspectorConfig `json:"inspector,omitempty"`

	// Telemetry contains metrics and tracing configuration.
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	// Export contains event log export configuration.
	Export ExportConfig `json:"export,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// HostConfig contains render loop settings.
type HostConfig struct {
	// MaxPasses bounds the render passes of one flush. Zero disables the bound.
	MaxPasses int `json:"maxPasses,omitempty"`

	// Debug enables debug logging of every pass.
	Debug bool `json:"debug,omitempty"`
}

// InspectorConfig contains inspector server settings.
type InspectorConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`
}

// TelemetryConfig contains metrics and tracing settings.
type TelemetryConfig struct {
	// Namespace is the Prometheus metrics namespace.
	Namespace string `json:"namespace,omitempty"`

	// TracerName is the OpenTelemetry tracer name.
	TracerName string `json:"tracerName,omitempty"`
}

// ExportConfig contains S3 export settings.
type ExportConfig struct {
	// Bucket is the destination bucket. Export is disabled when empty.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region of the bucket.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Host: HostConfig{
			MaxPasses: DefaultMaxPasses,
		},
		Inspector: InspectorConfig{
			Addr: DefaultInspectorAddr,
		},
		Telemetry: TelemetryConfig{
			Namespace:  DefaultNamespace,
			TracerName: DefaultTracerName,
		},
		Export: ExportConfig{
			Prefix: DefaultExportPrefix,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for hooks.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("H121").
				WithDetail("No hooks.json found in " + filepath.Dir(path)).
				WithSuggestion("Create hooks.json or run without --config to use defaults")
		}
		return nil, errors.New("H120").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("H120").
			WithDetail("Failed to parse hooks.json: " + err.Error()).
			WithSuggestion("Check that hooks.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("H120").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("H120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Inspector.Addr == "" {
		c.Inspector.Addr = DefaultInspectorAddr
	}
	if c.Telemetry.Namespace == "" {
		c.Telemetry.Namespace = DefaultNamespace
	}
	if c.Telemetry.TracerName == "" {
		c.Telemetry.TracerName = DefaultTracerName
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = DefaultExportPrefix
	}
	c.Export.Prefix = strings.Trim(c.Export.Prefix, "/")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("H120").
			WithDetail("log.level must be one of debug, info, warn, error; got " + c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("H120").
			WithDetail("log.format must be text or json; got " + c.Log.Format)
	}
	if c.Host.MaxPasses < 0 {
		return errors.New("H120").
			WithDetail("host.maxPasses must not be negative")
	}
	if c.Export.Endpoint != "" && c.Export.Bucket == "" {
		return errors.New("H120").
			WithDetail("export.endpoint is set but export.bucket is empty")
	}
	return nil
}

// LogLevel returns the configured slog level. Debug mode forces
// slog.LevelDebug.
func (c *Config) LogLevel() slog.Level {
	if c.Host.Debug {
		return slog.LevelDebug
	}
	level, _ := parseLevel(c.Log.Level)
	return level
}

// ExportEnabled reports whether an export bucket is configured.
func (c *Config) ExportEnabled() bool {
	return c.Export.Bucket != ""
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// hooks.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("H121").
				WithDetail("No hooks.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent holding hooks.json. When none exists, defaults are
// returned.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}
