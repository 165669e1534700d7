// internal/transform/enrich.go

package transform

import (
	"fmt"
	"os"
	"sync"

	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/shipper"
)

// Cached hostname to avoid repeated syscalls
var (
	cachedHostname string
	cacheOnce      sync.Once
)

func hostname() string {
	cacheOnce.Do(func() {
		h, err := os.Hostname()
		if err != nil {
			cachedHostname = "unknown"
			return
		}
		cachedHostname = h
	})
	return cachedHostname
}

// Static returns a middleware that sets a fixed metadata field on every
// event that does not already carry it. Only the recognized envelope keys
// survive normalization, so name should be one of host, source, sourcetype
// or index.
func Static(name, value string) (shipper.Middleware, error) {
	if name == "" {
		return nil, fmt.Errorf("static transform requires a field name")
	}
	if value == "" {
		return nil, fmt.Errorf("static transform requires a value")
	}
	return func(ctx *event.Context) error {
		if ctx.Batched {
			return nil
		}
		if ctx.Event.Metadata == nil {
			ctx.Event.Metadata = map[string]interface{}{}
		}
		if _, exists := ctx.Event.Metadata[name]; !exists {
			ctx.Event.Metadata[name] = value
		}
		return nil
	}, nil
}

// DefaultHost returns a middleware that fills the host metadata field with
// the local hostname when the caller did not set one.
func DefaultHost() shipper.Middleware {
	return func(ctx *event.Context) error {
		if ctx.Batched {
			return nil
		}
		if ctx.Event.Metadata == nil {
			ctx.Event.Metadata = map[string]interface{}{}
		}
		if _, exists := ctx.Event.Metadata[event.MetaHost]; !exists {
			ctx.Event.Metadata[event.MetaHost] = hostname()
		}
		return nil
	}
}
