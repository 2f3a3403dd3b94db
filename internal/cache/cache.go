// Package cache provides the existence cache: a set-membership service
// mirroring the record ids already persisted in the durable store.
package cache

import "context"

// Cache answers "have we already stored this record id" in O(1). It is
// shared by every fetch task within a worker and, for the Redis
// implementation, across worker processes.
type Cache interface {
	// Contains reports whether the id is already known.
	Contains(ctx context.Context, id string) (bool, error)
	// Add marks the id as known. Called immediately after a successful
	// persist so sibling tasks and workers skip the record.
	Add(ctx context.Context, id string) error
	// BulkLoad replaces the set with the durable store's full id set.
	// Called once at process start.
	BulkLoad(ctx context.Context, ids []string) error
	// Close releases any backing connections.
	Close() error
}
