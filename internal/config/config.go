// Package config loads pricedit configuration from defaults, an optional
// YAML file, and PRICEDIT_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v2"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "PRICEDIT"

// ConfigFileEnv names the variable holding the YAML config path.
const ConfigFileEnv = "PRICEDIT_CONFIG"

// Config represents the complete application configuration
type Config struct {
	Workbook WorkbookConfig `yaml:"workbook" envconfig:"WORKBOOK"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// WorkbookConfig locates the bundled workbook.
type WorkbookConfig struct {
	Path        string `yaml:"path" validate:"required"`
	ExportSheet string `yaml:"export_sheet" split_words:"true" validate:"required"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	ProbeRows     int           `yaml:"probe_rows" split_words:"true" validate:"min=1"`
	HeaderCells   []string      `yaml:"header_cells" split_words:"true"`
	TempDir       string        `yaml:"temp_dir" split_words:"true"`
	Engine        string        `yaml:"engine" validate:"oneof=auto none soffice"`
	SofficePath   string        `yaml:"soffice_path" split_words:"true" validate:"required"`
	EngineTimeout time.Duration `yaml:"engine_timeout" split_words:"true" validate:"gt=0"`
	PreviewRows   int           `yaml:"preview_rows" split_words:"true" validate:"min=1"`
	HintColumn    string        `yaml:"hint_column" split_words:"true"`
	ForceResolve  bool          `yaml:"force_resolve" split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" split_words:"true" validate:"gt=0"`
	SessionDir      string        `yaml:"session_dir" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workbook: WorkbookConfig{
			Path:        "your_workbook.xlsx",
			ExportSheet: pricedit.ExportSheet,
		},
		Export: ExportConfig{
			ProbeRows:     pricedit.DefaultProbeRows,
			HeaderCells:   append([]string(nil), pricedit.DefaultHeaderCells...),
			Engine:        pricedit.EngineAuto,
			SofficePath:   "soffice",
			EngineTimeout: pricedit.DefaultEngineTimeout,
			PreviewRows:   10,
			HintColumn:    "Variant Price",
		},
		Server: ServerConfig{
			Addr:            ":8501",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pricedit.log",
		},
	}
}

// Load builds the configuration. filePath may be empty, in which case
// PRICEDIT_CONFIG is consulted; a missing file is only an error when a
// path was given explicitly.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	explicit := filePath != ""
	if !explicit {
		filePath = os.Getenv(ConfigFileEnv)
		explicit = filePath != ""
	}
	if explicit {
		if err := loadFromFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment overrides the file; unset variables leave values alone.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile overlays the YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and header cell references.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for _, cell := range c.Export.HeaderCells {
		if !isCellRef(cell) {
			return fmt.Errorf("invalid header cell %q", cell)
		}
	}
	return nil
}

// ExportOptions converts the export section into pipeline options.
func (c *Config) ExportOptions() pricedit.ExportOptions {
	return pricedit.ExportOptions{
		ProbeRows:     c.Export.ProbeRows,
		HeaderCells:   c.Export.HeaderCells,
		TempDir:       c.Export.TempDir,
		ForceResolve:  c.Export.ForceResolve,
		EngineTimeout: c.Export.EngineTimeout,
	}
}

// isCellRef reports whether s is an A1-style cell reference.
func isCellRef(s string) bool {
	_, _, err := excelize.CellNameToCoordinates(s)
	return err == nil
}
