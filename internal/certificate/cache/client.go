package cache

import "context"

// Client is the raw key-value contract the draft cache sits on. Keys are
// opaque strings composed by the key scheme in keys.go; values are the JSON
// encodings produced by the draft cache.
//
// Get returns sentinel.ErrNotFound on a miss. Delete of an absent key is a
// no-op, never an error.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
