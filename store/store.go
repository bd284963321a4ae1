// Package store defines the aggregate persistence interface for cluster
// state. The cluster subsystem defines its own store interface; the
// composite Store adds lifecycle methods a backend needs beyond it.
// Backends: Postgres, Redis, and Memory.
package store

import (
	"context"

	"github.com/jjones-jr/parview/cluster"
)

// Store is the aggregate persistence interface. A single backend
// (postgres, redis, memory) implements the cluster registry plus
// schema and connection lifecycle.
type Store interface {
	cluster.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
