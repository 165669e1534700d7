package event

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"Whole second", time.Unix(1700000000, 0), "1700000000.000"},
		{"Millisecond precision", time.Unix(1700000000, 123000000), "1700000000.123"},
		{"Sub-millisecond truncated", time.Unix(1700000000, 123900000), "1700000000.123"},
		{"Epoch", time.Unix(0, 0), "0.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTime(tt.input))
		})
	}
}

func serializeToMap(t *testing.T, ctx *Context) map[string]interface{} {
	t.Helper()
	body, err := ctx.Serialize()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestSerialize_Envelope(t *testing.T) {
	st := testSettings()
	ctx, err := NewContext(&Payload{
		Message:  "hello world",
		Severity: "error",
		Metadata: map[string]interface{}{
			"time":       "1700000000.500",
			"host":       "web01",
			"source":     "app",
			"sourcetype": "json",
			"index":      "main",
		},
	}, st, "")
	require.NoError(t, err)

	out := serializeToMap(t, ctx)
	assert.Equal(t, "1700000000.500", out["time"])
	assert.Equal(t, "web01", out["host"])
	assert.Equal(t, "app", out["source"])
	assert.Equal(t, "json", out["sourcetype"])
	assert.Equal(t, "main", out["index"])

	ev, ok := out["event"].(map[string]interface{})
	require.True(t, ok, "envelope must nest message and severity under 'event'")
	assert.Equal(t, "hello world", ev["message"])
	assert.Equal(t, "error", ev["severity"])
}

func TestSerialize_OmitsAbsentMetadata(t *testing.T) {
	ctx, err := NewContext(&Payload{Message: "m"}, testSettings(), "")
	require.NoError(t, err)

	out := serializeToMap(t, ctx)
	assert.NotContains(t, out, "host")
	assert.NotContains(t, out, "source")
	assert.NotContains(t, out, "sourcetype")
	assert.NotContains(t, out, "index")
	assert.Contains(t, out, "time", "timestamp is always present")
}

func TestSerialize_StructuredMessage(t *testing.T) {
	ctx, err := NewContext(&Payload{
		Message: map[string]interface{}{"user": "alice", "count": 3},
	}, testSettings(), "")
	require.NoError(t, err)

	out := serializeToMap(t, ctx)
	ev := out["event"].(map[string]interface{})
	msg, ok := ev["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", msg["user"])
	assert.Equal(t, float64(3), msg["count"])
}

func TestSerialize_TimeFromMetadataVariants(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"String passthrough", "1234.567", "1234.567"},
		{"Float seconds", 1700000000.25, "1700000000.250"},
		{"Int seconds", 1700000000, "1700000000.000"},
		{"time.Time value", time.Unix(1700000001, 0), "1700000001.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := NewContext(&Payload{
				Message:  "m",
				Metadata: map[string]interface{}{"time": tt.value},
			}, testSettings(), "")
			require.NoError(t, err)

			out := serializeToMap(t, ctx)
			assert.Equal(t, tt.expected, out["time"])
		})
	}
}

func TestSerialize_DefaultsToCurrentTime(t *testing.T) {
	before := time.Now()
	ctx, err := NewContext(&Payload{Message: "m"}, testSettings(), "")
	require.NoError(t, err)
	out := serializeToMap(t, ctx)
	after := time.Now()

	ts, err := strconv.ParseFloat(out["time"].(string), 64)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ts, float64(before.UnixMilli())/1000-0.001)
	assert.LessOrEqual(t, ts, float64(after.UnixMilli())/1000+0.001)
}

func TestSerialize_BatchedBodyFollowsMessage(t *testing.T) {
	ctx := NewBatchContext([]byte("assembled"), testSettings(), "")

	body, err := ctx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "assembled", string(body))

	// A pipeline step may rewrite the assembled body; the next
	// serialization must transmit the rewritten form.
	ctx.Event.Message = "mutated"
	body, err = ctx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "mutated", string(body))
	assert.Equal(t, []byte("mutated"), ctx.Request.Body)
}

func TestSerialize_StoresRequestBody(t *testing.T) {
	ctx, err := NewContext(&Payload{Message: "m"}, testSettings(), "")
	require.NoError(t, err)

	body, err := ctx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, body, ctx.Request.Body)
}
