package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orgoj/hecship/internal/config"
)

func main() {
	// Parse command line flags
	flag.Parse()

	// Get config path from arguments
	if len(flag.Args()) < 1 {
		fmt.Println("Error: Config file path is required")
		fmt.Println("Usage: config-validator <config-file>")
		os.Exit(1)
	}
	configPath := flag.Args()[0]

	// Load and validate configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Perform additional validation
	if err := validateConfig(cfg); err != nil {
		fmt.Printf("Validation error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
}

func validateConfig(cfg *config.Config) error {
	// Check collector configuration
	if cfg.Collector.Token == "" {
		return fmt.Errorf("collector token cannot be empty")
	}
	if cfg.Collector.Port != 0 && (cfg.Collector.Port < 1000 || cfg.Collector.Port > 65535) {
		return fmt.Errorf("invalid collector port: %d", cfg.Collector.Port)
	}

	// Check batching parameters
	if cfg.Batch.MaxRetries < 0 {
		return fmt.Errorf("batch max_retries cannot be negative")
	}
	if cfg.Batch.Interval < 0 {
		return fmt.Errorf("batch interval cannot be negative")
	}
	if cfg.Batch.MaxSize < 0 {
		return fmt.Errorf("batch max_size cannot be negative")
	}

	// Check diagnostic destinations
	for i, dest := range cfg.Diagnostics {
		if !dest.Enabled {
			continue
		}

		switch dest.Type {
		case "gelf":
			if dest.Host == "" {
				return fmt.Errorf("diagnostic destination %d: GELF host cannot be empty", i)
			}
			if dest.Port <= 0 || dest.Port > 65535 {
				return fmt.Errorf("diagnostic destination %d: invalid GELF port: %d", i, dest.Port)
			}
		case "file":
			if dest.Path == "" {
				return fmt.Errorf("diagnostic destination %d: file path cannot be empty", i)
			}
		default:
			return fmt.Errorf("diagnostic destination %d: unsupported type: %s", i, dest.Type)
		}
	}

	return nil
}
