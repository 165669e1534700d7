package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orgoj/hecship/internal/config"
	"github.com/orgoj/hecship/internal/delivery"
	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/logger"
	"github.com/orgoj/hecship/internal/shipper"
	"github.com/orgoj/hecship/internal/transform"
	"github.com/orgoj/hecship/internal/version"
)

// inputLine is one newline-delimited JSON event read from stdin.
type inputLine struct {
	Message  interface{}            `json:"message"`
	Severity string                 `json:"severity,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func main() {
	// --- Configuration --- //
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	testConfigShort := flag.Bool("t", false, "Test configuration and exit (nginx style)")
	testConfigLong := flag.Bool("test", false, "Test configuration and exit (nginx style)")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.VersionInfo())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("[CRITICAL] Failed to load configuration from '%s': %v\n", *configPath, err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("[CRITICAL] Configuration validation failed for '%s':\n%v\n", *configPath, err)
		os.Exit(1)
	}

	if *testConfigShort || *testConfigLong {
		// Validation was already done above
		fmt.Printf("Configuration '%s' is valid.\n", *configPath)
		os.Exit(0)
	}

	// Initialize application logger
	appLogger := logger.GetAppLogger()
	if err := appLogger.SetLogLevelFromString(cfg.AppLog.Level); err != nil {
		fmt.Printf("[WARN] Invalid log level '%s', using default: %v\n", cfg.AppLog.Level, err)
	}

	appLogger.Warn("%s", version.VersionInfo())

	// --- Dependency Initialization --- //

	// Diagnostic sinks for delivery failures
	sinkManager := logger.NewManager()
	if err := sinkManager.InitSinks(cfg.Diagnostics); err != nil {
		appLogger.Fatal("Failed to initialize one or more diagnostic sinks: %v. Exiting.", err)
	}
	defer sinkManager.CloseAll()

	ship, err := shipper.New(cfg.Overrides(), shipper.Dependencies{AppLogger: appLogger})
	if err != nil {
		appLogger.Fatal("Failed to initialize shipper: %v", err)
	}
	defer ship.Close()

	if len(cfg.Diagnostics) > 0 {
		ship.SetErrorSink(func(err error, ctx *event.Context) {
			record := map[string]interface{}{
				"time":  time.Now().UTC().Format(time.RFC3339Nano),
				"level": "ERROR",
				"msg":   err.Error(),
			}
			if ctx != nil {
				record["endpoint"] = ctx.Request.URL
			}
			_ = sinkManager.LogAll(record)
			appLogger.Error("Event delivery failed: %v", err)
		})
	}

	// Pipeline steps from config
	steps, err := transform.FromSpecs(cfg.Transforms)
	if err != nil {
		appLogger.Fatal("Failed to build transforms: %v", err)
	}
	for _, step := range steps {
		if err := ship.Use(step); err != nil {
			appLogger.Fatal("Failed to register transform: %v", err)
		}
	}

	// --- Input Loop --- //

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			appLogger.Error("Failed to read input: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sent := 0
	done := false
	for !done {
		select {
		case line, ok := <-lines:
			if !ok {
				done = true
				break
			}
			if line == "" {
				continue
			}
			var in inputLine
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				appLogger.Warn("Skipping malformed input line: %v", err)
				continue
			}
			payload := &event.Payload{
				Message:  in.Message,
				Severity: in.Severity,
				Metadata: in.Metadata,
			}
			if err := ship.Send(payload, nil); err != nil {
				appLogger.Error("Failed to queue event: %v", err)
				continue
			}
			sent++
		case sig := <-quit:
			appLogger.Warn("Received signal %v, flushing and shutting down...", sig)
			done = true
		}
	}

	// Final drain of anything still queued. Without a batching condition a
	// single flush takes only the newest queued event, so flush repeatedly
	// until the queue is empty or the deadline passes.
	deadline := time.Now().Add(30 * time.Second)
	for {
		flushed := make(chan struct{})
		ship.Flush(func(err error, _ *delivery.Response, _ *delivery.Ack) {
			if err != nil {
				appLogger.Error("Final flush failed: %v", err)
			}
			close(flushed)
		})

		timedOut := false
		select {
		case <-flushed:
		case <-time.After(time.Until(deadline)):
			timedOut = true
		}

		if ship.CalculateBatchSize() == 0 {
			break
		}
		if timedOut || time.Now().After(deadline) {
			appLogger.Error("Timed out draining queue, %d bytes still queued", ship.CalculateBatchSize())
			break
		}
	}

	appLogger.Warn("Shipped %d events. Shutdown complete.", sent)
}
