// internal/config/settings.go

package config

import (
	"fmt"
	"time"
)

// Default values applied when neither the caller nor the instance supplies
// a field.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 8088
	DefaultProtocol = "https"
	DefaultPath     = "/services/collector/event/1.0"
	DefaultLevel    = "info"

	// Port range accepted by the collector endpoint configuration.
	MinPort = 1000
	MaxPort = 65535
)

// ConfigError reports a malformed setting. It is raised synchronously during
// resolution, before any event is queued, and is never retried or routed to
// the error sink.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid setting %q: %s", e.Field, e.Reason)
}

// Settings is a fully resolved, validated snapshot of the shipper
// configuration. A snapshot is immutable once produced; every send operation
// carries the snapshot that was in effect when it was created.
type Settings struct {
	Token    string
	Host     string
	Port     int
	Protocol string
	Path     string
	Level    string

	AutoFlush     bool
	MaxRetries    int
	BatchInterval time.Duration
	MaxBatchSize  int
}

// URL returns the collector endpoint URL for this snapshot.
func (s Settings) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", s.Protocol, s.Host, s.Port, s.Path)
}

// Overrides carries optional per-instance or per-call setting values. Nil
// fields fall through to the next resolution layer; each field is resolved
// independently.
type Overrides struct {
	Token    *string `yaml:"token,omitempty"`
	Host     *string `yaml:"host,omitempty"`
	Port     *int    `yaml:"port,omitempty"`
	Protocol *string `yaml:"protocol,omitempty"`
	Path     *string `yaml:"path,omitempty"`
	Level    *string `yaml:"level,omitempty"`

	AutoFlush     *bool `yaml:"auto_flush,omitempty"`
	MaxRetries    *int  `yaml:"max_retries,omitempty"`
	BatchInterval *int  `yaml:"batch_interval,omitempty"` // milliseconds
	MaxBatchSize  *int  `yaml:"max_batch_size,omitempty"` // bytes
}

// Defaults returns the built-in settings. The token has no default and must
// be supplied by an override before the snapshot validates.
func Defaults() Settings {
	return Settings{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Protocol:  DefaultProtocol,
		Path:      DefaultPath,
		Level:     DefaultLevel,
		AutoFlush: true,
	}
}

// Resolve merges o over base, field by field, and validates the result.
// base is typically the instance settings (themselves resolved over
// Defaults); o is a per-call override and may be nil.
func Resolve(base Settings, o *Overrides) (Settings, error) {
	s := base
	if o != nil {
		if o.Token != nil {
			s.Token = *o.Token
		}
		if o.Host != nil {
			s.Host = *o.Host
		}
		if o.Port != nil {
			s.Port = *o.Port
		}
		if o.Protocol != nil {
			s.Protocol = *o.Protocol
		}
		if o.Path != nil {
			s.Path = *o.Path
		}
		if o.Level != nil {
			s.Level = *o.Level
		}
		if o.AutoFlush != nil {
			s.AutoFlush = *o.AutoFlush
		}
		if o.MaxRetries != nil {
			s.MaxRetries = *o.MaxRetries
		}
		if o.BatchInterval != nil {
			s.BatchInterval = time.Duration(*o.BatchInterval) * time.Millisecond
		}
		if o.MaxBatchSize != nil {
			s.MaxBatchSize = *o.MaxBatchSize
		}
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Token == "" {
		return &ConfigError{Field: "token", Reason: "token is required and cannot be empty"}
	}
	if s.Host == "" {
		return &ConfigError{Field: "host", Reason: "host cannot be empty"}
	}
	if s.Port < MinPort || s.Port > MaxPort {
		return &ConfigError{Field: "port", Reason: fmt.Sprintf("port %d outside [%d,%d]", s.Port, MinPort, MaxPort)}
	}
	if s.Protocol != "http" && s.Protocol != "https" {
		return &ConfigError{Field: "protocol", Reason: fmt.Sprintf("unsupported protocol %q, must be 'http' or 'https'", s.Protocol)}
	}
	if s.MaxRetries < 0 {
		return &ConfigError{Field: "max_retries", Reason: fmt.Sprintf("cannot be negative: %d", s.MaxRetries)}
	}
	if s.BatchInterval < 0 {
		return &ConfigError{Field: "batch_interval", Reason: fmt.Sprintf("cannot be negative: %s", s.BatchInterval)}
	}
	if s.MaxBatchSize < 0 {
		return &ConfigError{Field: "max_batch_size", Reason: fmt.Sprintf("cannot be negative: %d", s.MaxBatchSize)}
	}
	return nil
}
