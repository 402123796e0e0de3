// Package config implements the Config Provider (C1): the AuthConfig
// snapshot source, in file-backed and Postgres-backed variants, per
// spec.md §4.1/§6/§9 ("Polymorphic Config Provider").
package config

import (
	"context"

	"github.com/authgate/authgate/internal/model"
)

// Provider is the capability interface the request path depends on: a
// single method returning the currently-published AuthConfig snapshot.
// Both variants publish snapshots via an atomic pointer swap (§9,
// "Snapshot publishing") so readers never observe a partial update.
type Provider interface {
	// Current returns the most recently published AuthConfig snapshot.
	// An error is returned only when no snapshot has ever been
	// published and the source cannot be reached (apperr.KindConfigUnavailable);
	// a transient failure on a subsequent call returns the last-known-good
	// snapshot instead of an error (§4.1 "Failure semantics").
	Current(ctx context.Context) (model.AuthConfig, error)

	// Close releases background resources. The Postgres variant closes
	// its connection pool; the file-backed variant's Close is a no-op and
	// does not stop its file watch.
	Close() error
}

// MutableProvider additionally supports the route CRUD operations the
// Admin API (C7) drives. Only the Postgres-backed variant implements
// this; the file-backed variant is read-only at runtime, consistent with
// §4.6: the admin surface is mounted only when a database-backed
// provider is active.
type MutableProvider interface {
	Provider

	RouteList(ctx context.Context) ([]model.RouteDef, error)
	RouteGet(ctx context.Context, id int) (model.RouteDef, bool, error)
	RouteCreate(ctx context.Context, route model.RouteDef) (model.RouteDef, error)
	RouteUpdate(ctx context.Context, id int, route model.RouteDef) (model.RouteDef, bool, error)
	RouteDelete(ctx context.Context, id int) (bool, error)
}
