package vault

import (
	"context"

	"go.uber.org/zap"
)

// Vault encrypts, decrypts and masks the credentials of one provider.
// It is derived per (tenant, credential schema): only the fields the
// schema marks secret are touched, everything else passes through.
type Vault struct {
	tenantID     string
	secretFields map[string]bool
	cipher       *Cipher
	cache        *CacheHandle
	logger       *zap.Logger
}

// Derive builds a vault for one provider. secretFields names the
// credential fields that hold secrets; cache may be nil.
func Derive(tenantID string, secretFields []string, cipher *Cipher, cacheHandle *CacheHandle, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := make(map[string]bool, len(secretFields))
	for _, name := range secretFields {
		fields[name] = true
	}
	return &Vault{
		tenantID:     tenantID,
		secretFields: fields,
		cipher:       cipher,
		cache:        cacheHandle,
		logger:       logger.With(zap.String("component", "credential_vault"), zap.String("tenant_id", tenantID)),
	}
}

// Encrypt seals every secret field of a plaintext credential map. The
// result is safe to persist; non-secret fields stay readable.
func (v *Vault) Encrypt(credentials map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(credentials))
	for name, value := range credentials {
		if !v.secretFields[name] {
			out[name] = value
			continue
		}
		sealed, err := v.cipher.Encrypt(value)
		if err != nil {
			return nil, err
		}
		out[name] = sealed
	}
	return out, nil
}

// Decrypt opens every secret field of a stored credential map, consulting
// the cache first and repopulating it after a store decrypt. Fields that
// fail to open are passed through untouched, so records written before
// encryption was enabled still load.
func (v *Vault) Decrypt(ctx context.Context, credentials map[string]string) map[string]string {
	if cached, ok := v.cache.Get(ctx); ok {
		return cached
	}

	out := make(map[string]string, len(credentials))
	for name, value := range credentials {
		if !v.secretFields[name] {
			out[name] = value
			continue
		}
		plain, err := v.cipher.Decrypt(value)
		if err != nil {
			v.logger.Debug("credential field did not decrypt, passing through", zap.String("field", name))
			out[name] = value
			continue
		}
		out[name] = plain
	}

	v.cache.Set(ctx, out)
	return out
}

// Mask redacts every secret field for display. Deterministic for a given
// input, never reversible, other fields pass through.
func (v *Vault) Mask(credentials map[string]string) map[string]string {
	out := make(map[string]string, len(credentials))
	for name, value := range credentials {
		if v.secretFields[name] && value != "" {
			out[name] = maskValue(value)
			continue
		}
		out[name] = value
	}
	return out
}

// Cache exposes the provider's cache handle for post-commit invalidation.
func (v *Vault) Cache() *CacheHandle {
	return v.cache
}
