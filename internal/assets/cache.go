package assets

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const DefaultCacheTTL = 30 * time.Second

// ManifestStore is a byte-oriented TTL store used to cache decoded manifests.
type ManifestStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachingFetcher serves manifests from a store and falls through to the wrapped
// fetcher on a miss. Failed fetches are never cached, and store errors only
// degrade to a direct fetch.
type CachingFetcher struct {
	next   ManifestFetcher
	store  ManifestStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachingFetcher(next ManifestFetcher, store ManifestStore, ttl time.Duration, logger *zap.Logger) *CachingFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingFetcher{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachingFetcher) Fetch(ctx context.Context, source Source) (Manifest, error) {
	key := CacheKey(source)

	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("manifest cache read failed", zap.String("portal", source.Name), zap.Error(err))
	case ok:
		var manifest Manifest
		if err := json.Unmarshal(raw, &manifest); err == nil && manifest.Files != nil {
			return manifest, nil
		}
		c.logger.Warn("discarding corrupt manifest cache entry", zap.String("portal", source.Name))
	}

	manifest, err := c.next.Fetch(ctx, source)
	if err != nil {
		return Manifest{}, err
	}

	encoded, err := json.Marshal(manifest)
	if err != nil {
		return manifest, nil
	}
	if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
		c.logger.Warn("manifest cache write failed", zap.String("portal", source.Name), zap.Error(err))
	}
	return manifest, nil
}

// CacheKey derives the store key for a portal. The manifest URL is part of the
// key so pointing a portal at a new location never serves a stale entry.
func CacheKey(source Source) string {
	sum := blake2b.Sum256([]byte(source.ManifestURL))
	return source.Name + ":" + hex.EncodeToString(sum[:8])
}
