// internal/logger/gelf_sink.go

package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/orgoj/hecship/internal/config"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"
)

// Writer factories as variables so tests can substitute them
var gelfUDPWriterFactory = gelf.NewUDPWriter
var gelfTCPWriterFactory = gelf.NewTCPWriter

var setUDPCompression = func(writer *gelf.UDPWriter, compType gelf.CompressType) {
	writer.CompressionType = compType
}

// GelfSink forwards diagnostic records to a Graylog server.
type GelfSink struct {
	name     string
	writer   gelf.Writer
	hostName string
}

// NewGelfSink creates a new GELF diagnostic sink.
func NewGelfSink(cfg config.DiagDestination) (*GelfSink, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for GELF sink")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("valid port is required for GELF sink")
	}

	hostName, err := os.Hostname()
	if err != nil {
		hostName = "unknown"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var writer gelf.Writer
	if cfg.Protocol == "tcp" {
		tcpWriter, err := gelfTCPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF TCP writer: %w", err)
		}
		writer = tcpWriter
	} else {
		// Default to UDP
		udpWriter, err := gelfUDPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF UDP writer: %w", err)
		}
		switch cfg.CompressionType {
		case "gzip":
			setUDPCompression(udpWriter, gelf.CompressGzip)
		case "zlib":
			setUDPCompression(udpWriter, gelf.CompressZlib)
		default:
			setUDPCompression(udpWriter, gelf.CompressNone)
		}
		writer = udpWriter
	}

	return &GelfSink{
		name:     cfg.Name,
		writer:   writer,
		hostName: hostName,
	}, nil
}

// Log sends a diagnostic record to the Graylog server.
func (g *GelfSink) Log(record map[string]interface{}) error {
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     g.hostName,
		Short:    recordString(record, "msg", "No message"),
		TimeUnix: float64(time.Now().Unix()) + float64(time.Now().Nanosecond())/1e9,
		Level:    gelfLevel(record),
		Extra:    make(map[string]interface{}),
	}

	for k, v := range record {
		// Skip fields mapped to standard GELF fields
		if k == "msg" || k == "time" || k == "level" {
			continue
		}

		// GELF requires additional fields to start with an underscore
		extraKey := k
		if extraKey[0] != '_' {
			extraKey = "_" + extraKey
		}

		// GELF doesn't support complex data types
		switch v := v.(type) {
		case string, float64, float32, int, int32, int64, uint, uint32, uint64:
			msg.Extra[extraKey] = v
		default:
			msg.Extra[extraKey] = fmt.Sprintf("%v", v)
		}
	}

	return g.writer.WriteMessage(msg)
}

// Close closes the GELF writer.
func (g *GelfSink) Close() error {
	return g.writer.Close()
}

// Name returns the name of the sink.
func (g *GelfSink) Name() string {
	return g.name
}

func recordString(record map[string]interface{}, key, defaultValue string) string {
	if val, ok := record[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
		return fmt.Sprintf("%v", val)
	}
	return defaultValue
}

// gelfLevel maps the record's diagnostic level name onto syslog severity.
func gelfLevel(record map[string]interface{}) int32 {
	lvl, _ := record["level"].(string)
	switch lvl {
	case "FATAL":
		return 2
	case "ERROR":
		return 3
	case "WARN":
		return 4
	case "INFO":
		return 6
	case "DEBUG", "TRACE":
		return 7
	}
	return 3 // Diagnostic records default to error severity
}

// Ensure GelfSink implements the Sink interface.
var _ Sink = (*GelfSink)(nil)
