// internal/logger/manager.go

package logger

import (
	"fmt"
	"sync"

	"github.com/orgoj/hecship/internal/config"
)

// Manager handles the lifecycle of diagnostic sink instances and fans
// records out to all of them.
type Manager struct {
	sinks     map[string]Sink
	mu        sync.RWMutex
	appLogger *AppLogger
}

// NewManager creates a new sink manager.
func NewManager() *Manager {
	return &Manager{
		sinks:     make(map[string]Sink),
		appLogger: GetAppLogger(),
	}
}

// InitSinks initializes sinks based on the provided configuration.
func (m *Manager) InitSinks(destinations []config.DiagDestination) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Close existing sinks first if any (e.g., on reconfiguration)
	for name, snk := range m.sinks {
		if err := snk.Close(); err != nil {
			m.appLogger.Warn("Error closing existing sink '%s' during re-initialization: %v", name, err)
		}
	}
	m.sinks = make(map[string]Sink)

	var initErrors []error
	for _, dest := range destinations {
		if !dest.Enabled {
			continue
		}

		var snk Sink
		var err error

		switch dest.Type {
		case "file":
			snk, err = NewFileSink(dest)
		case "gelf":
			snk, err = NewGelfSink(dest)
		default:
			err = fmt.Errorf("unsupported sink type: %s", dest.Type)
		}

		if err != nil {
			m.appLogger.Error("Failed to initialize diagnostic sink '%s' (type: %s): %v", dest.Name, dest.Type, err)
			initErrors = append(initErrors, fmt.Errorf("sink '%s': %w", dest.Name, err))
			continue
		}

		m.sinks[dest.Name] = snk
		m.appLogger.Info("Initialized diagnostic sink '%s' (type: %s)", dest.Name, dest.Type)
	}

	if len(initErrors) > 0 {
		return fmt.Errorf("failed to initialize some sinks: %v", initErrors)
	}
	return nil
}

// GetSink retrieves a sink instance by name.
// Returns nil if the sink is not found or not initialized.
func (m *Manager) GetSink(name string) Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snk, ok := m.sinks[name]
	if !ok {
		return nil
	}
	return snk
}

// SinkNames returns a slice of names for all initialized sinks.
func (m *Manager) SinkNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sinks))
	for name := range m.sinks {
		names = append(names, name)
	}
	return names
}

// LogAll writes one diagnostic record to every initialized sink. A failing
// sink does not stop the fan-out; the first error is returned.
func (m *Manager) LogAll(record map[string]interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var firstErr error
	for name, snk := range m.sinks {
		if err := snk.Log(record); err != nil {
			m.appLogger.Warn("Diagnostic sink '%s' write failed: %v", name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sink '%s': %w", name, err)
			}
		}
	}
	return firstErr
}

// CloseAll closes all managed sink instances.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wg sync.WaitGroup
	for name, snk := range m.sinks {
		wg.Add(1)
		go func(name string, snk Sink) {
			defer wg.Done()
			if err := snk.Close(); err != nil {
				m.appLogger.Warn("Error closing sink '%s': %v", name, err)
			}
		}(name, snk)
	}
	wg.Wait()
	m.sinks = make(map[string]Sink)
}
