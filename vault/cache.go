package vault

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/internal/cache"
)

// credentialTTL bounds how long decrypted credentials stay cached.
const credentialTTL = 9 * time.Minute

// CacheHandle caches decrypted credentials for one provider. Entries are
// sealed with the vault cipher before they reach Redis, so plaintext
// secrets never leave the process. A nil manager disables caching; every
// operation then degrades to a miss.
type CacheHandle struct {
	manager *cache.Manager
	cipher  *Cipher
	key     string
	logger  *zap.Logger
}

// NewCacheHandle builds a handle scoped to one tenant and provider.
func NewCacheHandle(manager *cache.Manager, cipher *Cipher, tenantID, providerID string, logger *zap.Logger) *CacheHandle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheHandle{
		manager: manager,
		cipher:  cipher,
		key:     fmt.Sprintf("toolhub:credentials:tenant:%s:provider:%s", tenantID, providerID),
		logger:  logger,
	}
}

// Get returns the cached credentials, or (nil, false) on a miss. Cache
// backend failures count as misses so reads can fall back to the store.
func (h *CacheHandle) Get(ctx context.Context) (map[string]string, bool) {
	if h == nil || h.manager == nil {
		return nil, false
	}
	sealed, err := h.manager.Get(ctx, h.key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			h.logger.Warn("credential cache read failed", zap.Error(err))
		}
		return nil, false
	}
	values, err := h.cipher.DecryptJSON(sealed)
	if err != nil {
		h.logger.Warn("credential cache entry unreadable, dropping", zap.Error(err))
		_ = h.manager.Delete(ctx, h.key)
		return nil, false
	}
	return values, true
}

// Set stores decrypted credentials. Failures are logged, never returned:
// the cache is an optimization, not a source of truth.
func (h *CacheHandle) Set(ctx context.Context, values map[string]string) {
	if h == nil || h.manager == nil {
		return
	}
	sealed, err := h.cipher.EncryptJSON(values)
	if err != nil {
		h.logger.Warn("credential cache seal failed", zap.Error(err))
		return
	}
	if err := h.manager.Set(ctx, h.key, sealed, credentialTTL); err != nil {
		h.logger.Warn("credential cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached entry. Must be called after any credential
// update or provider delete.
func (h *CacheHandle) Invalidate(ctx context.Context) {
	if h == nil || h.manager == nil {
		return
	}
	if err := h.manager.Delete(ctx, h.key); err != nil {
		h.logger.Warn("credential cache invalidation failed", zap.Error(err))
	}
}
