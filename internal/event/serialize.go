// internal/event/serialize.go

package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// envelope is the collector wire format for a single event.
type envelope struct {
	Time       string      `json:"time"`
	Host       string      `json:"host,omitempty"`
	Source     string      `json:"source,omitempty"`
	SourceType string      `json:"sourcetype,omitempty"`
	Index      string      `json:"index,omitempty"`
	Event      eventFields `json:"event"`
}

type eventFields struct {
	Message  interface{} `json:"message"`
	Severity string      `json:"severity"`
}

// FormatTime renders t as epoch seconds with millisecond precision, the
// string form the collector expects in the envelope's time field.
func FormatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', 3, 64)
}

// Serialize renders the context's event as one wire envelope, stores it as
// the request body and returns it. For a batched context the message IS the
// assembled body; it is re-encoded on every call so pipeline mutations
// applied after assembly still reach the wire.
func (c *Context) Serialize() ([]byte, error) {
	if c.Batched {
		switch m := c.Event.Message.(type) {
		case string:
			c.Request.Body = []byte(m)
		case []byte:
			c.Request.Body = m
		default:
			body, err := json.Marshal(m)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize batch body: %w", err)
			}
			c.Request.Body = body
		}
		return c.Request.Body, nil
	}

	env := envelope{
		Time: eventTime(c.Event.Metadata),
		Event: eventFields{
			Message:  c.Event.Message,
			Severity: c.Event.Severity,
		},
	}
	env.Host = metaString(c.Event.Metadata, MetaHost)
	env.Source = metaString(c.Event.Metadata, MetaSource)
	env.SourceType = metaString(c.Event.Metadata, MetaSourceType)
	env.Index = metaString(c.Event.Metadata, MetaIndex)

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	c.Request.Body = body
	return body, nil
}

// eventTime resolves the envelope timestamp from metadata, falling back to
// the current time.
func eventTime(md map[string]interface{}) string {
	if ts, ok := md[MetaTime]; ok {
		switch v := ts.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', 3, 64)
		case int:
			return strconv.FormatFloat(float64(v), 'f', 3, 64)
		case int64:
			return strconv.FormatFloat(float64(v), 'f', 3, 64)
		case time.Time:
			return FormatTime(v)
		}
	}
	return FormatTime(time.Now())
}

// metaString reads a metadata field as a string, stringifying other scalar
// types the way the collector tolerates.
func metaString(md map[string]interface{}, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
