// internal/transform/filter.go

package transform

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/shipper"
)

// ErrEventFiltered aborts a flush whose event matched a filter pattern. It
// reaches the error sink like any middleware error; no network attempt is
// made for the filtered event.
var ErrEventFiltered = errors.New("event dropped by filter")

// Filter returns a middleware that drops events whose metadata field
// matches any of the glob patterns. field must be one of source,
// sourcetype or host. Patterns are pre-compiled at registration.
func Filter(field string, patterns []string) (shipper.Middleware, error) {
	if field == "" {
		field = event.MetaSource
	}
	if field != event.MetaSource && field != event.MetaSourceType && field != event.MetaHost {
		return nil, fmt.Errorf("invalid filter field '%s', must be 'source', 'sourcetype' or 'host'", field)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("filter requires at least one pattern")
	}

	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter glob pattern '%s': %w", pattern, err)
		}
		globs = append(globs, g)
	}

	return func(ctx *event.Context) error {
		if ctx.Batched {
			return nil
		}
		value, _ := ctx.Event.Metadata[field].(string)
		if value == "" {
			return nil
		}
		for _, g := range globs {
			if g.Match(value) {
				return ErrEventFiltered
			}
		}
		return nil
	}, nil
}
