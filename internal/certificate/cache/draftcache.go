package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"catchcert/internal/certificate/metrics"
	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	id "catchcert/pkg/domain"
	"catchcert/pkg/platform/sentinel"
)

// DraftCache is the per-caller cache in front of the document store.
//
// Coherence rules (the cache is never a source of truth):
//   - Read errors degrade to a miss so the engine stays usable with the cache
//     entirely unavailable, only slower.
//   - Populate errors after a store read are logged and swallowed; the caller
//     already holds the authoritative value.
//   - Invalidation errors propagate: a mutation that cannot invalidate must
//     not report success, or a reader could be served a value staler than the
//     last write.
//
// Single-document entries cache negative results as a "null" tombstone;
// aggregate views never cache empty results, so a first document shows up
// without waiting for an invalidation that would never come.
type DraftCache struct {
	client  Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a DraftCache.
type Option func(*DraftCache)

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *DraftCache) { c.logger = logger }
}

// WithMetrics sets the metrics sink for hit/miss/fallback counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *DraftCache) { c.metrics = m }
}

// New constructs a DraftCache over the given client.
func New(client Client, opts ...Option) *DraftCache {
	c := &DraftCache{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDocument looks up a single-document entry. The second return reports a
// cache hit; a hit with a nil document means "known absent" (tombstone).
func (c *DraftCache) GetDocument(ctx context.Context, owner ownership.Owner, number id.DocumentNumber) (*models.Document, bool) {
	raw, ok := c.get(ctx, Key(owner, DocumentPath(number)), "document")
	if !ok {
		return nil, false
	}
	var doc *models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Warn("draft cache: corrupt document entry, treating as miss",
			"documentNumber", number, "error", err)
		return nil, false
	}
	return doc, true
}

// PutDocument caches a single-document lookup result, including "not found"
// as a nil tombstone.
func (c *DraftCache) PutDocument(ctx context.Context, owner ownership.Owner, number id.DocumentNumber, doc *models.Document) {
	raw, err := json.Marshal(doc)
	if err != nil {
		c.logger.Warn("draft cache: encode document", "documentNumber", number, "error", err)
		return
	}
	c.put(ctx, Key(owner, DocumentPath(number)), raw)
}

// GetHeaders looks up an aggregate header view under the given logical path.
func (c *DraftCache) GetHeaders(ctx context.Context, owner ownership.Owner, path string, view string) ([]models.DocumentHeader, bool) {
	raw, ok := c.get(ctx, Key(owner, path), view)
	if !ok {
		return nil, false
	}
	var headers []models.DocumentHeader
	if err := json.Unmarshal(raw, &headers); err != nil {
		c.logger.Warn("draft cache: corrupt header entry, treating as miss",
			"path", path, "error", err)
		return nil, false
	}
	return headers, true
}

// PutHeaders caches an aggregate view. Empty results are not cached: an empty
// aggregate must not stick until an invalidation that may never target it.
func (c *DraftCache) PutHeaders(ctx context.Context, owner ownership.Owner, path string, headers []models.DocumentHeader) {
	if len(headers) == 0 {
		return
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		c.logger.Warn("draft cache: encode headers", "path", path, "error", err)
		return
	}
	c.put(ctx, Key(owner, path), raw)
}

// Invalidate removes the entries for the given logical paths. Deleting an
// absent key is a no-op; any client error is returned to the caller.
func (c *DraftCache) Invalidate(ctx context.Context, owner ownership.Owner, paths ...string) error {
	if len(paths) == 1 {
		return c.client.Delete(ctx, Key(owner, paths[0]))
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		key := Key(owner, path)
		g.Go(func() error {
			return c.client.Delete(gctx, key)
		})
	}
	return g.Wait()
}

func (c *DraftCache) get(ctx context.Context, key string, view string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		c.metrics.RecordCacheMiss(view)
		return nil, false
	}
	if err != nil {
		c.metrics.RecordCacheFallback()
		c.logger.Warn("draft cache: read failed, falling back to store", "key", key, "error", err)
		return nil, false
	}
	c.metrics.RecordCacheHit(view)
	return raw, true
}

func (c *DraftCache) put(ctx context.Context, key string, raw []byte) {
	if err := c.client.Set(ctx, key, raw); err != nil {
		c.logger.Warn("draft cache: populate failed", "key", key, "error", err)
	}
}
