// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DiagRotation defines parameters for diagnostic log file rotation.
type DiagRotation struct {
	MaxSize    string `yaml:"max_size,omitempty"` // e.g., "100MB", "50k"
	MaxAge     string `yaml:"max_age,omitempty"`  // e.g., "7d", "2w", "1m"
	MaxBackups int    `yaml:"max_backups,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// DiagDestination represents a diagnostic log destination. Delivery failures
// and shipper diagnostics are fanned out to every enabled destination.
type DiagDestination struct {
	Name    string `yaml:"name"` // Mandatory, unique identifier
	Type    string `yaml:"type"` // Mandatory: file, gelf
	Enabled bool   `yaml:"enabled"`

	// File specific
	Path     string       `yaml:"path,omitempty"`   // Mandatory for type: file
	Format   string       `yaml:"format,omitempty"` // Mandatory for type: file (json or text)
	Rotation DiagRotation `yaml:"rotation,omitempty"`

	// GELF specific
	Host            string `yaml:"host,omitempty"`             // Mandatory for type: gelf
	Port            int    `yaml:"port,omitempty"`             // Mandatory for type: gelf
	Protocol        string `yaml:"protocol,omitempty"`         // Optional (udp or tcp, default udp)
	CompressionType string `yaml:"compression_type,omitempty"` // Optional (gzip, zlib, none, default none)
}

// TransformSpec configures one built-in transform step registered on the
// shipper pipeline. Registration order follows the config order.
type TransformSpec struct {
	Type string `yaml:"type"` // truncate, static, filter

	// static
	Name  string `yaml:"name,omitempty"`
	Value string `yaml:"value,omitempty"`

	// truncate
	Limit int `yaml:"limit,omitempty"` // bytes

	// filter
	Field    string   `yaml:"field,omitempty"` // source, sourcetype, host (default source)
	Patterns []string `yaml:"patterns,omitempty"`
}

// Config represents the CLI application configuration
type Config struct {
	Collector struct {
		Token    string `yaml:"token" validate:"required"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"omitempty,min=1000,max=65535"`
		Protocol string `yaml:"protocol" validate:"omitempty,oneof=http https"`
		Path     string `yaml:"path"`
	} `yaml:"collector"`

	Batch struct {
		AutoFlush  *bool `yaml:"auto_flush"` // default true
		MaxRetries int   `yaml:"max_retries" validate:"min=0"`
		Interval   int   `yaml:"interval" validate:"min=0"` // milliseconds, 0 = disabled
		MaxSize    int   `yaml:"max_size" validate:"min=0"` // bytes, 0 = flush on every event
	} `yaml:"batch"`

	AppLog struct {
		Level string `yaml:"level"`
	} `yaml:"app_log"`

	Diagnostics []DiagDestination `yaml:"diagnostics"`
	Transforms  []TransformSpec   `yaml:"transforms"`
}

// Overrides maps the file configuration onto instance-level setting
// overrides for the shipper.
func (c *Config) Overrides() *Overrides {
	o := &Overrides{Token: &c.Collector.Token}
	if c.Collector.Host != "" {
		o.Host = &c.Collector.Host
	}
	if c.Collector.Port != 0 {
		o.Port = &c.Collector.Port
	}
	if c.Collector.Protocol != "" {
		o.Protocol = &c.Collector.Protocol
	}
	if c.Collector.Path != "" {
		o.Path = &c.Collector.Path
	}
	if c.Batch.AutoFlush != nil {
		o.AutoFlush = c.Batch.AutoFlush
	}
	if c.Batch.MaxRetries != 0 {
		o.MaxRetries = &c.Batch.MaxRetries
	}
	if c.Batch.Interval != 0 {
		o.BatchInterval = &c.Batch.Interval
	}
	if c.Batch.MaxSize != 0 {
		o.MaxBatchSize = &c.Batch.MaxSize
	}
	return o
}

// LoadConfig loads and validates the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	// Defaults applied before unmarshalling
	cfg.AppLog.Level = "WARN"

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfig performs semantic validation of the configuration
func validateConfig(cfg *Config) error {
	if cfg.Collector.Token == "" {
		return errors.New("collector.token cannot be empty")
	}
	if cfg.Collector.Port != 0 && (cfg.Collector.Port < MinPort || cfg.Collector.Port > MaxPort) {
		return fmt.Errorf("invalid collector.port: %d", cfg.Collector.Port)
	}
	if cfg.Collector.Protocol != "" && cfg.Collector.Protocol != "http" && cfg.Collector.Protocol != "https" {
		return fmt.Errorf("invalid collector.protocol: '%s', must be 'http' or 'https'", cfg.Collector.Protocol)
	}
	if cfg.Batch.MaxRetries < 0 {
		return errors.New("batch.max_retries cannot be negative")
	}
	if cfg.Batch.Interval < 0 {
		return errors.New("batch.interval cannot be negative")
	}
	if cfg.Batch.MaxSize < 0 {
		return errors.New("batch.max_size cannot be negative")
	}

	// Diagnostic destinations validation
	destinationNames := make(map[string]bool)
	for i, dest := range cfg.Diagnostics {
		if dest.Name == "" {
			return fmt.Errorf("diagnostics[%d]: name is required", i)
		}
		if destinationNames[dest.Name] {
			return fmt.Errorf("diagnostics: duplicate name '%s' found", dest.Name)
		}
		destinationNames[dest.Name] = true

		switch dest.Type {
		case "file":
			if dest.Path == "" {
				return fmt.Errorf("diagnostics[%s]: path is required for type 'file'", dest.Name)
			}
			if dest.Format != "json" && dest.Format != "text" {
				return fmt.Errorf("diagnostics[%s]: invalid format '%s', must be 'json' or 'text' for type 'file'", dest.Name, dest.Format)
			}
			if dest.Rotation.MaxSize != "" {
				if _, err := ParseSize(dest.Rotation.MaxSize); err != nil {
					return fmt.Errorf("diagnostics[%s]: invalid rotation.max_size: %w", dest.Name, err)
				}
			}
			if dest.Rotation.MaxAge != "" {
				if _, err := ParseDuration(dest.Rotation.MaxAge); err != nil {
					return fmt.Errorf("diagnostics[%s]: invalid rotation.max_age: %w", dest.Name, err)
				}
			}
			if dest.Rotation.MaxBackups < 0 {
				return fmt.Errorf("diagnostics[%s]: rotation.max_backups cannot be negative", dest.Name)
			}
		case "gelf":
			if dest.Host == "" {
				return fmt.Errorf("diagnostics[%s]: host is required for type 'gelf'", dest.Name)
			}
			if dest.Port <= 0 || dest.Port > 65535 {
				return fmt.Errorf("diagnostics[%s]: invalid port %d for type 'gelf'", dest.Name, dest.Port)
			}
			if dest.Protocol != "" && dest.Protocol != "udp" && dest.Protocol != "tcp" {
				return fmt.Errorf("diagnostics[%s]: invalid protocol '%s', must be 'udp' or 'tcp' for type 'gelf'", dest.Name, dest.Protocol)
			}
			if dest.Protocol == "" {
				cfg.Diagnostics[i].Protocol = "udp"
			}
			if dest.CompressionType != "" && dest.CompressionType != "gzip" && dest.CompressionType != "zlib" && dest.CompressionType != "none" {
				return fmt.Errorf("diagnostics[%s]: invalid compression_type '%s', must be 'gzip', 'zlib', or 'none' for type 'gelf'", dest.Name, dest.CompressionType)
			}
			if dest.CompressionType == "" {
				cfg.Diagnostics[i].CompressionType = "none"
			}
		default:
			return fmt.Errorf("diagnostics[%s]: unknown type '%s'", dest.Name, dest.Type)
		}
	}

	// Transform specs validation
	for i, spec := range cfg.Transforms {
		specPath := fmt.Sprintf("transforms[%d]", i)
		switch spec.Type {
		case "truncate":
			if spec.Limit <= 0 {
				return fmt.Errorf("%s: limit must be positive for type 'truncate'", specPath)
			}
		case "static":
			if spec.Name == "" {
				return fmt.Errorf("%s: name is required for type 'static'", specPath)
			}
			if spec.Value == "" {
				return fmt.Errorf("%s: value is required for type 'static'", specPath)
			}
		case "filter":
			if len(spec.Patterns) == 0 {
				return fmt.Errorf("%s: at least one pattern is required for type 'filter'", specPath)
			}
			if spec.Field != "" && spec.Field != "source" && spec.Field != "sourcetype" && spec.Field != "host" {
				return fmt.Errorf("%s: invalid field '%s', must be 'source', 'sourcetype' or 'host'", specPath, spec.Field)
			}
		default:
			return fmt.Errorf("%s: unknown type '%s'", specPath, spec.Type)
		}
	}

	return nil
}

// ValidateConfig uses go-playground/validator for struct-level validation.
// It complements the semantic validation in validateConfig.
func ValidateConfig(cfg *Config) error {
	validate := validator.New()

	err := validate.Struct(cfg)
	if err != nil {
		// Translate validation errors into a more readable format
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			fieldName := err.Field()
			tag := err.Tag()
			message := fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fieldName, tag)
			validationErrors = append(validationErrors, message)
		}
		return errors.New(strings.Join(validationErrors, "; "))
	}

	// Perform additional semantic validation (that validator can't easily handle)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	return nil
}

// ParseDuration parses a duration string (e.g., "10m", "1h30m", "7d").
// Supports standard time.ParseDuration units plus 'd' for days.
// Returns an error if the format is invalid or the duration is non-positive.
func ParseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, errors.New("duration string cannot be empty")
	}

	// Handle 'd' suffix manually
	if strings.HasSuffix(strings.ToLower(durationStr), "d") {
		numStr := strings.TrimSuffix(strings.ToLower(durationStr), "d")
		days, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format for days in '%s': %w", durationStr, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
		}
		d := time.Duration(days) * 24 * time.Hour
		if d <= 0 {
			return 0, fmt.Errorf("duration %dd results in overflow", days)
		}
		return d, nil
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format '%s': %w", durationStr, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
	}
	return d, nil
}

// ParseSize parses a size string (e.g., "10MB", "5k", "1G") into bytes.
// Supports K, M, G suffixes (case-insensitive).
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, errors.New("size string cannot be empty")
	}

	var multiplier int64 = 1
	suffix := ""

	switch {
	case strings.HasSuffix(sizeStr, "KB"):
		multiplier, suffix = 1024, "KB"
	case strings.HasSuffix(sizeStr, "K"):
		multiplier, suffix = 1024, "K"
	case strings.HasSuffix(sizeStr, "MB"):
		multiplier, suffix = 1024*1024, "MB"
	case strings.HasSuffix(sizeStr, "M"):
		multiplier, suffix = 1024*1024, "M"
	case strings.HasSuffix(sizeStr, "GB"):
		multiplier, suffix = 1024*1024*1024, "GB"
	case strings.HasSuffix(sizeStr, "G"):
		multiplier, suffix = 1024*1024*1024, "G"
	}

	numStr := sizeStr
	if suffix != "" {
		numStr = strings.TrimSuffix(sizeStr, suffix)
	}
	numStr = strings.TrimSpace(numStr)

	// Use big.Int for invalid format detection and negative numbers
	numBig := new(big.Int)
	_, ok := numBig.SetString(numStr, 10)
	if !ok {
		return 0, fmt.Errorf("invalid number format in size string '%s'", sizeStr)
	}

	if numBig.Sign() < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", numBig.String())
	}
	if numBig.Sign() == 0 {
		return 0, nil // Zero is valid
	}

	resultBig := new(big.Int).Mul(numBig, big.NewInt(multiplier))

	if !resultBig.IsInt64() {
		return 0, fmt.Errorf("size value %s%s results in overflow (exceeds max int64)", numBig.String(), suffix)
	}

	return resultBig.Int64(), nil
}
