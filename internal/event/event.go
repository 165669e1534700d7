// internal/event/event.go

package event

// Severity level names accepted by the collector.
const (
	SeverityDebug = "debug"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Metadata keys recognized by the collector envelope. Anything else in a
// submitted metadata map is dropped during normalization.
const (
	MetaTime       = "time"
	MetaHost       = "host"
	MetaSource     = "source"
	MetaSourceType = "sourcetype"
	MetaIndex      = "index"
)

var recognizedMetadata = map[string]bool{
	MetaTime:       true,
	MetaHost:       true,
	MetaSource:     true,
	MetaSourceType: true,
	MetaIndex:      true,
}

// Event is one normalized user submission: an arbitrary message payload, a
// severity name and the recognized metadata fields.
type Event struct {
	Message  interface{}
	Severity string
	Metadata map[string]interface{}
}

// FilterMetadata copies the recognized keys out of md. The result is never
// nil and filtering an already filtered map returns an equal map, so the
// operation is safe to repeat.
func FilterMetadata(md map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		if recognizedMetadata[k] {
			out[k] = v
		}
	}
	return out
}
