package isr

import "context"

// Adapter is the pluggable storage behind the CacheManager. Implementations
// exist for process memory, the filesystem, BadgerDB, and S3; anything that
// can store an Entry per key works.
//
// A missing key is not an error: Get and GetMeta return (nil, nil). Errors
// are reserved for storage failures.
//
// The core performs no locking around adapter calls; adapters must be safe
// for concurrent use and each single operation must be atomic.
type Adapter interface {
	// Get returns the entry stored under key, or (nil, nil) if absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores the entry under key, replacing any previous entry.
	Set(ctx context.Context, key string, entry *Entry) error

	// Delete removes the entry under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys currently stored.
	Keys(ctx context.Context) ([]string, error)

	// GetMeta returns only the metadata for key, or (nil, nil) if absent.
	// Adapters may implement this more cheaply than a full Get.
	GetMeta(ctx context.Context, key string) (*Meta, error)
}
