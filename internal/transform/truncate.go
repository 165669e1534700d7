// internal/transform/truncate.go

package transform

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/shipper"
)

const (
	ellipsis          = "..."
	minTruncateLength = 10 // Minimum length a string keeps after truncation (excluding ellipsis)
	maxTruncateIters  = 100
)

// Truncate returns a middleware that bounds the serialized size of an
// event message. String messages are cut directly; structured messages are
// reduced by iteratively truncating their longest string value until the
// JSON representation fits or no truncatable string remains.
func Truncate(limit int) (shipper.Middleware, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("truncate limit must be positive, got %d", limit)
	}
	return func(ctx *event.Context) error {
		if ctx.Batched {
			return nil
		}
		switch msg := ctx.Event.Message.(type) {
		case string:
			if len(msg) > limit {
				ctx.Event.Message = cutString(msg, limit)
			}
		case map[string]interface{}:
			return truncateMap(msg, limit)
		}
		return nil
	}, nil
}

func cutString(s string, limit int) string {
	if limit <= len(ellipsis) {
		return cutAt(s, limit)
	}
	return cutAt(s, limit-len(ellipsis)) + ellipsis
}

// cutAt shortens s to at most n bytes, backing off to a rune boundary so
// the result is always valid UTF-8.
func cutAt(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// truncateMap shrinks the map in place until its JSON size fits the limit.
func truncateMap(data map[string]interface{}, limit int) error {
	size, err := estimateSize(data)
	if err != nil {
		return err
	}

	for iter := 0; size > limit && iter < maxTruncateIters; iter++ {
		longest := findLongestString(data, minTruncateLength)
		if longest == nil {
			break
		}
		longest.set(cutAt(longest.value, minTruncateLength) + ellipsis)

		newSize, err := estimateSize(data)
		if err != nil {
			return err
		}
		if newSize >= size {
			break
		}
		size = newSize
	}
	return nil
}

func estimateSize(data map[string]interface{}) (int, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate message size: %w", err)
	}
	return len(b), nil
}

// stringSlot is a located string value together with a setter that writes
// back into its container.
type stringSlot struct {
	value string
	set   func(string)
}

// findLongestString walks nested maps and slices for the longest string
// value exceeding min. Returns nil when none qualifies.
func findLongestString(v interface{}, min int) *stringSlot {
	var best *stringSlot

	consider := func(s string, set func(string)) {
		if len(s) <= min+len(ellipsis) {
			return
		}
		if best == nil || len(s) > len(best.value) {
			best = &stringSlot{value: s, set: set}
		}
	}

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			for k, vv := range t {
				if s, ok := vv.(string); ok {
					key := k
					consider(s, func(ns string) { t[key] = ns })
				} else {
					walk(vv)
				}
			}
		case []interface{}:
			for i, vv := range t {
				if s, ok := vv.(string); ok {
					idx := i
					consider(s, func(ns string) { t[idx] = ns })
				} else {
					walk(vv)
				}
			}
		}
	}
	walk(v)
	return best
}
