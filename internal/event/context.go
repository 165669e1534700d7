// internal/event/context.go

package event

import (
	"fmt"
	"net/http"

	"github.com/orgoj/hecship/internal/config"
)

// ContextError reports a malformed event submission. It is raised
// synchronously, before anything is queued.
type ContextError struct {
	Reason string
}

func (e *ContextError) Error() string {
	return "invalid event context: " + e.Reason
}

// Payload is the raw seed of a send operation as supplied by the caller.
type Payload struct {
	Message  interface{}
	Severity string
	Metadata map[string]interface{}
	Config   *config.Overrides // optional per-call setting overrides
}

// ValidateSeed checks the parts of a payload that must be present before
// settings resolution runs.
func ValidateSeed(p *Payload) error {
	if p == nil {
		return &ContextError{Reason: "payload is required"}
	}
	if p.Message == nil {
		return &ContextError{Reason: "message is required"}
	}
	return nil
}

// Request holds the transport options for one delivery: the endpoint URL,
// the outgoing headers and the serialized body.
type Request struct {
	URL     string
	Headers http.Header
	Body    []byte
}

// Context is the unit of work: one normalized event (or one assembled
// batch), the settings snapshot active when it was created, and the
// transport options. A Context is created fresh per operation, never shared
// across concurrent operations, and discarded after its callback fires.
type Context struct {
	Event    *Event
	Settings config.Settings
	Request  *Request

	// Batched marks a context whose body was assembled from a drained
	// batch snapshot; its body is final and is not re-serialized.
	Batched bool
}

// NewContext normalizes a validated payload against a resolved settings
// snapshot. channel is the shipper's stable request-channel identifier.
func NewContext(p *Payload, st config.Settings, channel string) (*Context, error) {
	c := &Context{
		Event: &Event{
			Message:  p.Message,
			Severity: p.Severity,
			Metadata: p.Metadata,
		},
		Settings: st,
		Request:  newRequest(st, channel, contentTypeJSON),
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewBatchContext wraps an already assembled batch body in a synthetic
// flush context. The body, the concatenation of the drained event bodies,
// becomes the context's message so pipeline steps can still act on it
// before transmission.
func NewBatchContext(body []byte, st config.Settings, channel string) *Context {
	c := &Context{
		Event: &Event{
			Message:  string(body),
			Severity: st.Level,
			Metadata: map[string]interface{}{},
		},
		Settings: st,
		Request:  newRequest(st, channel, contentTypeForm),
		Batched:  true,
	}
	c.Request.Body = body
	return c
}

// Normalize canonicalizes the context in place: the severity falls back to
// the configured level and the metadata is reduced to the recognized keys.
// Normalizing twice yields an identical context; the shipper relies on that
// to absorb middleware mutations just before transmission.
func (c *Context) Normalize() error {
	if c.Event == nil || c.Event.Message == nil {
		return &ContextError{Reason: "message is required"}
	}
	if c.Event.Severity == "" {
		c.Event.Severity = c.Settings.Level
	}
	c.Event.Metadata = FilterMetadata(c.Event.Metadata)
	return nil
}

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

func newRequest(st config.Settings, channel, contentType string) *Request {
	h := http.Header{}
	h.Set("Authorization", fmt.Sprintf("Splunk %s", st.Token))
	h.Set("Content-Type", contentType)
	if channel != "" {
		h.Set("X-Splunk-Request-Channel", channel)
	}
	return &Request{
		URL:     st.URL(),
		Headers: h,
	}
}
