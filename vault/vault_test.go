package vault

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/internal/cache"
)

var testSecretFields = []string{"api_key_value"}

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c
}

func testCacheManager(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return mr, manager
}

func TestVault_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	cipher := testCipher(t)
	v := Derive("tenant-1", testSecretFields, cipher, nil, zap.NewNop())

	plain := map[string]string{
		"auth_type":      "api_key",
		"api_key_header": "X-API-Key",
		"api_key_value":  "super-secret",
	}

	sealed, err := v.Encrypt(plain)
	require.NoError(t, err)

	// Non-secret fields stay readable, the secret one does not.
	assert.Equal(t, "api_key", sealed["auth_type"])
	assert.Equal(t, "X-API-Key", sealed["api_key_header"])
	assert.NotEqual(t, "super-secret", sealed["api_key_value"])

	opened := v.Decrypt(context.Background(), sealed)
	assert.Equal(t, plain, opened)
}

func TestVault_DecryptPassesThroughUnencryptedValues(t *testing.T) {
	t.Parallel()

	v := Derive("tenant-1", testSecretFields, testCipher(t), nil, zap.NewNop())

	stored := map[string]string{
		"auth_type":     "api_key",
		"api_key_value": "written-before-encryption",
	}
	opened := v.Decrypt(context.Background(), stored)
	assert.Equal(t, "written-before-encryption", opened["api_key_value"])
}

func TestVault_Mask(t *testing.T) {
	t.Parallel()

	v := Derive("tenant-1", testSecretFields, testCipher(t), nil, zap.NewNop())

	masked := v.Mask(map[string]string{
		"auth_type":      "api_key",
		"api_key_header": "X-API-Key",
		"api_key_value":  "super-secret",
	})

	assert.Equal(t, "api_key", masked["auth_type"])
	assert.Equal(t, "X-API-Key", masked["api_key_header"])
	assert.Equal(t, "su********et", masked["api_key_value"])
}

func TestVault_DecryptUsesCache(t *testing.T) {
	t.Parallel()

	_, manager := testCacheManager(t)
	cipher := testCipher(t)
	handle := NewCacheHandle(manager, cipher, "tenant-1", "provider-1", zap.NewNop())
	v := Derive("tenant-1", testSecretFields, cipher, handle, zap.NewNop())

	ctx := context.Background()
	plain := map[string]string{"auth_type": "api_key", "api_key_value": "cached-secret"}

	sealed, err := v.Encrypt(plain)
	require.NoError(t, err)

	// First decrypt populates the cache.
	opened := v.Decrypt(ctx, sealed)
	assert.Equal(t, plain, opened)

	cached, ok := handle.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, plain, cached)

	// Second decrypt is served from the cache even with garbage input.
	opened = v.Decrypt(ctx, map[string]string{"api_key_value": "not-even-ciphertext"})
	assert.Equal(t, plain, opened)
}

func TestCacheHandle_Invalidate(t *testing.T) {
	t.Parallel()

	_, manager := testCacheManager(t)
	cipher := testCipher(t)
	handle := NewCacheHandle(manager, cipher, "tenant-1", "provider-1", zap.NewNop())

	ctx := context.Background()
	handle.Set(ctx, map[string]string{"api_key_value": "secret"})

	_, ok := handle.Get(ctx)
	require.True(t, ok)

	handle.Invalidate(ctx)

	_, ok = handle.Get(ctx)
	assert.False(t, ok)
}

func TestCacheHandle_SealedAtRest(t *testing.T) {
	t.Parallel()

	mr, manager := testCacheManager(t)
	cipher := testCipher(t)
	handle := NewCacheHandle(manager, cipher, "tenant-1", "provider-1", zap.NewNop())

	ctx := context.Background()
	handle.Set(ctx, map[string]string{"api_key_value": "plaintext-secret"})

	raw, err := mr.Get("toolhub:credentials:tenant:tenant-1:provider:provider-1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "plaintext-secret")
}

func TestCacheHandle_NilManagerDegrades(t *testing.T) {
	t.Parallel()

	handle := NewCacheHandle(nil, testCipher(t), "tenant-1", "provider-1", zap.NewNop())
	ctx := context.Background()

	handle.Set(ctx, map[string]string{"k": "v"})
	_, ok := handle.Get(ctx)
	assert.False(t, ok)
	handle.Invalidate(ctx)
}

func TestCacheHandle_TenantIsolation(t *testing.T) {
	t.Parallel()

	_, manager := testCacheManager(t)
	cipher := testCipher(t)
	a := NewCacheHandle(manager, cipher, "tenant-a", "provider-1", zap.NewNop())
	b := NewCacheHandle(manager, cipher, "tenant-b", "provider-1", zap.NewNop())

	ctx := context.Background()
	a.Set(ctx, map[string]string{"api_key_value": "tenant-a-secret"})

	_, ok := b.Get(ctx)
	assert.False(t, ok)
}
