// internal/logger/interface.go

package logger

// Sink defines the interface for diagnostic log destinations. Delivery
// failures and other shipper diagnostics are handed to every configured
// sink as a flat record map; implementations transform the map into their
// output format (JSON lines, GELF).
type Sink interface {
	// Log processes and writes a single diagnostic record.
	Log(record map[string]interface{}) error

	// Close handles cleanup, like flushing buffers or closing connections.
	// It should be called during application shutdown.
	Close() error

	// Name returns the unique name of the sink instance (from config).
	Name() string
}
