package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"movetrack/internal/errors"
)

// Dir is the per-project state directory holding config, database and dumps.
const Dir = ".movetrack"

// EnvPrefix prefixes every environment override, e.g. MOVETRACK_MOVEDETECTION_WORKERS.
const EnvPrefix = "MOVETRACK"

// Config represents the complete movetrack configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	MoveDetection MoveDetectionConfig `json:"moveDetection" mapstructure:"moveDetection"`
	Memory        MemoryConfig        `json:"memory" mapstructure:"memory"`
	Dump          DumpConfig          `json:"dump" mapstructure:"dump"`
	Snapshot      SnapshotConfig      `json:"snapshot" mapstructure:"snapshot"`
	Report        ReportConfig        `json:"report" mapstructure:"report"`
	Logging       LoggingConfig       `json:"logging" mapstructure:"logging"`
}

// MoveDetectionConfig tunes the similarity-based detection
type MoveDetectionConfig struct {
	MinRequiredScore    int     `json:"minRequiredScore" mapstructure:"minRequiredScore"`
	LowerLineCountRatio float64 `json:"lowerLineCountRatio" mapstructure:"lowerLineCountRatio"`
	UpperLineCountRatio float64 `json:"upperLineCountRatio" mapstructure:"upperLineCountRatio"`
	Workers             int     `json:"workers" mapstructure:"workers"`
}

// MemoryConfig configures the heap guard run before the score matrix is allocated.
// MaxHeapBytes 0 means: use GOMEMLIMIT when set, else a 4 GiB budget.
type MemoryConfig struct {
	MaxHeapBytes      int64   `json:"maxHeapBytes" mapstructure:"maxHeapBytes"`
	SafetyMarginRatio float64 `json:"safetyMarginRatio" mapstructure:"safetyMarginRatio"`
}

// DumpConfig controls CSV dumps of computed score matrices
type DumpConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
	Keep    int    `json:"keep" mapstructure:"keep"`
}

// SnapshotConfig configures access to previous analyses
type SnapshotConfig struct {
	DatabasePath      string `json:"databasePath" mapstructure:"databasePath"`
	LineHashCacheSize int    `json:"lineHashCacheSize" mapstructure:"lineHashCacheSize"`
}

// ReportConfig configures how report files are collected
type ReportConfig struct {
	Excludes []string `json:"excludes" mapstructure:"excludes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	// File, when set, also receives every record as JSON lines. Relative paths
	// resolve against the repository root.
	File string `json:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		MoveDetection: MoveDetectionConfig{
			MinRequiredScore:    85,
			LowerLineCountRatio: 0.84,
			UpperLineCountRatio: 1.18,
			Workers:             1,
		},
		Memory: MemoryConfig{
			MaxHeapBytes:      0,
			SafetyMarginRatio: 0.05,
		},
		Dump: DumpConfig{
			Enabled: false,
			Dir:     filepath.Join(Dir, "dumps"),
			Keep:    5,
		},
		Snapshot: SnapshotConfig{
			DatabasePath:      filepath.Join(Dir, "movetrack.db"),
			LineHashCacheSize: 1024,
		},
		Report: ReportConfig{
			Excludes: []string{".git/**", Dir + "/**", "vendor/**", "node_modules/**"},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <root>/.movetrack/config.{json,yaml,toml}.
// Environment variables prefixed with MOVETRACK_ override file values; a missing
// file yields the defaults with overrides applied.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, Dir))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("moveDetection.minRequiredScore", d.MoveDetection.MinRequiredScore)
	v.SetDefault("moveDetection.lowerLineCountRatio", d.MoveDetection.LowerLineCountRatio)
	v.SetDefault("moveDetection.upperLineCountRatio", d.MoveDetection.UpperLineCountRatio)
	v.SetDefault("moveDetection.workers", d.MoveDetection.Workers)
	v.SetDefault("memory.maxHeapBytes", d.Memory.MaxHeapBytes)
	v.SetDefault("memory.safetyMarginRatio", d.Memory.SafetyMarginRatio)
	v.SetDefault("dump.enabled", d.Dump.Enabled)
	v.SetDefault("dump.dir", d.Dump.Dir)
	v.SetDefault("dump.keep", d.Dump.Keep)
	v.SetDefault("snapshot.databasePath", d.Snapshot.DatabasePath)
	v.SetDefault("snapshot.lineHashCacheSize", d.Snapshot.LineHashCacheSize)
	v.SetDefault("report.excludes", d.Report.Excludes)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// Save writes the configuration to <root>/.movetrack/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	md := c.MoveDetection
	switch {
	case md.MinRequiredScore <= 0 || md.MinRequiredScore > 100:
		return invalid("moveDetection.minRequiredScore", "must be in (0, 100]")
	case md.LowerLineCountRatio <= 0 || md.LowerLineCountRatio > 1:
		return invalid("moveDetection.lowerLineCountRatio", "must be in (0, 1]")
	case md.UpperLineCountRatio < 1:
		return invalid("moveDetection.upperLineCountRatio", "must be >= 1")
	case md.Workers < 1:
		return invalid("moveDetection.workers", "must be >= 1")
	case c.Memory.MaxHeapBytes < 0:
		return invalid("memory.maxHeapBytes", "must not be negative")
	case c.Memory.SafetyMarginRatio < 0 || c.Memory.SafetyMarginRatio >= 1:
		return invalid("memory.safetyMarginRatio", "must be in [0, 1)")
	case c.Snapshot.LineHashCacheSize < 1:
		return invalid("snapshot.lineHashCacheSize", "must be >= 1")
	case c.Dump.Keep < 1:
		return invalid("dump.keep", "must be >= 1")
	case c.Dump.Enabled && c.Dump.Dir == "":
		return invalid("dump.dir", "required when dumps are enabled")
	}
	return nil
}

func invalid(field, message string) error {
	cause := &ConfigError{Field: field, Message: message}
	return errors.NewCodedError(errors.ConfigInvalid, "invalid configuration", cause,
		errors.GetSuggestedFixes(errors.ConfigInvalid), nil)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
