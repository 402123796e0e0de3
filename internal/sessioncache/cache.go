// Package sessioncache implements the Session Cache (C3): a read-through
// store for resolved sessions keyed by raw cookie value, with a
// per-entry TTL derived from each session's own JWT expiry.
package sessioncache

import (
	"context"
	"time"

	"github.com/authgate/authgate/internal/model"
)

// Cache is the capability interface both cache variants satisfy. The
// request path depends only on this interface; the concrete variant is
// chosen at the composition root from environment.
type Cache interface {
	// Get returns the cached session for cookieValue and true, or the
	// zero Session and false on miss or expiry.
	Get(ctx context.Context, cookieValue string) (model.Session, bool)

	// Set caches session under cookieValue for ttl. Callers must never
	// call Set after an Upstream resolution failure (spec.md §8
	// invariant 7: "A cache miss that produces Upstream never writes the
	// cache").
	Set(ctx context.Context, cookieValue string, session model.Session, ttl time.Duration)

	// Close releases any background resources (sweeper goroutine,
	// network connections).
	Close() error
}
