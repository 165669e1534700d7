// internal/logger/file_sink.go

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/orgoj/hecship/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink writes diagnostic records to a file with optional rotation.
type FileSink struct {
	mu     sync.Mutex
	writer io.WriteCloser // *os.File or *lumberjack.Logger
	format string         // "json" or "text"
	name   string
}

// NewFileSink creates a new FileSink instance.
func NewFileSink(cfg config.DiagDestination) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file sink requires a path")
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return nil, fmt.Errorf("invalid file sink format: %s", cfg.Format)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("file sink requires a name")
	}

	var maxSizeMB int
	var maxAgeDays int

	if cfg.Rotation.MaxSize != "" {
		sizeBytes, err := config.ParseSize(cfg.Rotation.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid rotation.max_size '%s' for sink '%s': %w", cfg.Rotation.MaxSize, cfg.Name, err)
		}
		maxSizeMB = int(sizeBytes / (1024 * 1024))
		if sizeBytes > 0 && maxSizeMB == 0 {
			// lumberjack's minimum granularity is 1MB
			maxSizeMB = 1
		}
	}

	if cfg.Rotation.MaxAge != "" {
		ageDuration, err := config.ParseDuration(cfg.Rotation.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid rotation.max_age '%s' for sink '%s': %w", cfg.Rotation.MaxAge, cfg.Name, err)
		}
		maxAgeDays = int(ageDuration.Hours() / 24)
		if maxAgeDays <= 0 && ageDuration > 0 {
			maxAgeDays = 1
		}
	}

	var writer io.WriteCloser
	if maxSizeMB > 0 || maxAgeDays > 0 || cfg.Rotation.MaxBackups > 0 {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSizeMB,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     maxAgeDays,
			Compress:   cfg.Rotation.Compress,
			LocalTime:  false, // UTC timestamps in rotated names
		}
	} else {
		file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open diagnostic file %s: %w", cfg.Path, err)
		}
		writer = file
	}

	return &FileSink{
		writer: writer,
		format: cfg.Format,
		name:   cfg.Name,
	}, nil
}

// Log writes the diagnostic record to the file.
func (l *FileSink) Log(record map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var line []byte
	if l.format == "json" {
		var err error
		line, err = json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostic record to JSON: %w", err)
		}
	} else { // format == "text"
		line = l.formatText(record)
	}
	line = append(line, '\n')

	if _, err := l.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write diagnostic line: %w", err)
	}
	return nil
}

// formatText converts the record map into a simple text line.
// Example: [TIME] LEVEL: msg (key=value key2=value2 ...)
func (l *FileSink) formatText(record map[string]interface{}) []byte {
	var sb strings.Builder

	timestamp := time.Now().UTC()
	if timeVal, ok := record["time"]; ok {
		if tsStr, ok := timeVal.(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
				timestamp = parsed
			}
		}
	}
	sb.WriteString("[")
	sb.WriteString(timestamp.Format("2006-01-02T15:04:05.000Z"))
	sb.WriteString("]")

	levelStr := "ERROR"
	if levelVal, ok := record["level"].(string); ok {
		levelStr = levelVal
	}
	sb.WriteString(" ")
	sb.WriteString(levelStr)
	sb.WriteString(":")

	msg := "-"
	if msgVal, ok := record["msg"].(string); ok {
		msg = msgVal
	}
	sb.WriteString(" ")
	sb.WriteString(msg)

	// Other fields (sorted for consistency)
	keys := make([]string, 0, len(record))
	for k := range record {
		if k == "time" || k == "level" || k == "msg" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(formatValue(record[k]))
	}

	return []byte(sb.String())
}

// formatValue converts different types to string for text logging.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, " ") {
			return strconv.Quote(v)
		}
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "<nil>"
	default:
		jsonBytes, err := json.Marshal(v)
		if err == nil {
			return string(jsonBytes)
		}
		return fmt.Sprintf("%v", v)
	}
}

// Close closes the underlying file writer.
func (l *FileSink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}

// Name returns the name of the sink destination.
func (l *FileSink) Name() string {
	return l.name
}

// Ensure FileSink implements the Sink interface.
var _ Sink = (*FileSink)(nil)
