// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/toolhub/internal/cache"
	"github.com/BaSui01/toolhub/internal/database"
	"github.com/BaSui01/toolhub/store"
	"github.com/BaSui01/toolhub/types"
	"github.com/BaSui01/toolhub/vault"
)

type testEnv struct {
	registry *Registry
	repo     *store.ProviderRepo
	cipher   *vault.Cipher
	redis    *miniredis.Miniredis
	cache    *cache.Manager
}

func setupRegistry(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	pool, err := database.NewPoolManager(db, database.PoolConfig{MaxIdleConns: 2, MaxOpenConns: 5}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	cipher, err := vault.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	repo := store.NewProviderRepo(pool, zap.NewNop())
	labels := store.NewLabelStore(pool, zap.NewNop())
	reg := New(repo, labels, NewHTTPFetcher(nil, zap.NewNop()), cipher, manager, zap.NewNop())

	return &testEnv{registry: reg, repo: repo, cipher: cipher, redis: mr, cache: manager}
}

// schemaWithTools builds an OpenAPI document exposing n parameterless
// GET operations named op0..op(n-1).
func schemaWithTools(n int, serverURL string) string {
	var b strings.Builder
	b.WriteString(`{"openapi":"3.0.0","info":{"title":"Test API","version":"1.0.0"},`)
	fmt.Fprintf(&b, `"servers":[{"url":%q}],"paths":{`, serverURL)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"/op%d":{"get":{"operationId":"op%d","summary":"operation %d","responses":{"200":{"description":"ok"}}}}`, i, i, i)
	}
	b.WriteString("}}")
	return b.String()
}

func apiKeyCredentials(value string) map[string]string {
	return map[string]string{
		"auth_type":      "api_key",
		"api_key_header": "X-Api-Key",
		"api_key_value":  value,
	}
}

func TestRegistry_CreateAndListProviders(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	rec, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Icon:        "🌤️",
		Description: "weather lookups",
		Schema:      schemaWithTools(2, "https://api.example.com"),
		Credentials: apiKeyCredentials("super-secret-value"),
		Labels:      []string{"search", "utilities"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, views, 1)

	view := views[0]
	assert.Equal(t, "weather", view.Name)
	assert.Equal(t, "openapi", view.SchemaType)
	assert.ElementsMatch(t, []string{"search", "utilities"}, view.Labels)
	require.Len(t, view.Tools, 2)
	assert.Equal(t, "op0", view.Tools[0].Name)
	assert.ElementsMatch(t, []string{"search", "utilities"}, view.Tools[0].Labels)

	// Secrets only ever leave the registry masked.
	masked := view.MaskedCredentials["api_key_value"]
	assert.NotEqual(t, "super-secret-value", masked)
	assert.Equal(t, "su", masked[:2])
	assert.Contains(t, masked, "*")
	assert.Equal(t, "api_key", view.MaskedCredentials["auth_type"])
	assert.Equal(t, "X-Api-Key", view.MaskedCredentials["api_key_header"])

	// Stored credentials are encrypted at rest.
	stored, err := env.repo.FindByName(ctx, "tenant-1", "weather")
	require.NoError(t, err)
	assert.NotContains(t, stored.Credentials, "super-secret-value")
}

func TestRegistry_Create_Validation(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "   ",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	_, err = env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "broken",
		Schema:      "{not a schema",
		Credentials: map[string]string{"auth_type": "none"},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidSchema))

	_, err = env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "no-auth",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}

func TestRegistry_Create_DuplicateName(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	req := UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	}
	_, err := env.registry.Create(ctx, "tenant-1", "user-1", req)
	require.NoError(t, err)

	_, err = env.registry.Create(ctx, "tenant-1", "user-1", req)
	assert.True(t, types.IsErrorCode(err, types.ErrConflict))

	// Same name in another tenant is fine.
	_, err = env.registry.Create(ctx, "tenant-2", "user-2", req)
	assert.NoError(t, err)
}

func TestRegistry_Create_BundleLimit(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "at-limit",
		Schema:      schemaWithTools(100, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	})
	assert.NoError(t, err)

	_, err = env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "over-limit",
		Schema:      schemaWithTools(101, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrLimitExceeded))
}

func TestRegistry_Update_MergeKeepsStoredSecret(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	created, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: apiKeyCredentials("super-secret-value"),
	})
	require.NoError(t, err)

	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	maskedValue := views[0].MaskedCredentials["api_key_value"]
	require.NotEqual(t, "super-secret-value", maskedValue)

	// Echo the masked placeholder back, the way an edit form does.
	_, err = env.registry.Update(ctx, "tenant-1", "weather", UpsertRequest{
		Name:   "weather",
		Icon:   "🌧️",
		Schema: schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{
			"auth_type":      "api_key",
			"api_key_header": "X-Api-Key",
			"api_key_value":  maskedValue,
		},
	})
	require.NoError(t, err)

	// The cached entry is dropped after the write commits.
	assert.Empty(t, env.redis.Keys())

	rec, err := env.repo.FindByName(ctx, "tenant-1", "weather")
	require.NoError(t, err)
	stored, err := rec.CredentialsMap()
	require.NoError(t, err)

	handle := vault.NewCacheHandle(env.cache, env.cipher, rec.TenantID, rec.ID, zap.NewNop())
	vlt := vault.Derive(rec.TenantID, []string{"api_key_value"}, env.cipher, handle, zap.NewNop())
	plain := vlt.Decrypt(ctx, stored)
	assert.Equal(t, "super-secret-value", plain["api_key_value"])
	assert.Equal(t, created.ID, rec.ID)

	// A fresh value replaces the stored one.
	_, err = env.registry.Update(ctx, "tenant-1", "weather", UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: apiKeyCredentials("rotated-secret"),
	})
	require.NoError(t, err)

	rec, err = env.repo.FindByName(ctx, "tenant-1", "weather")
	require.NoError(t, err)
	stored, err = rec.CredentialsMap()
	require.NoError(t, err)
	handle = vault.NewCacheHandle(env.cache, env.cipher, rec.TenantID, rec.ID, zap.NewNop())
	vlt = vault.Derive(rec.TenantID, []string{"api_key_value"}, env.cipher, handle, zap.NewNop())
	assert.Equal(t, "rotated-secret", vlt.Decrypt(ctx, stored)["api_key_value"])
}

func TestRegistry_Update_RenameAndConflicts(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	base := UpsertRequest{
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	}

	first := base
	first.Name = "first"
	_, err := env.registry.Create(ctx, "tenant-1", "user-1", first)
	require.NoError(t, err)

	second := base
	second.Name = "second"
	_, err = env.registry.Create(ctx, "tenant-1", "user-1", second)
	require.NoError(t, err)

	// Rename onto an occupied name conflicts.
	clash := base
	clash.Name = "second"
	_, err = env.registry.Update(ctx, "tenant-1", "first", clash)
	assert.True(t, types.IsErrorCode(err, types.ErrConflict))

	// Renaming to a free name works and retires the original name.
	renamed := base
	renamed.Name = "third"
	_, err = env.registry.Update(ctx, "tenant-1", "first", renamed)
	require.NoError(t, err)

	_, err = env.repo.FindByName(ctx, "tenant-1", "third")
	assert.NoError(t, err)

	_, err = env.registry.Update(ctx, "tenant-1", "first", renamed)
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestRegistry_Delete(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: apiKeyCredentials("super-secret-value"),
		Labels:      []string{"search"},
	})
	require.NoError(t, err)

	// Warm the credential cache through a listing.
	_, err = env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)

	require.NoError(t, env.registry.Delete(ctx, "tenant-1", "weather"))
	assert.Empty(t, env.redis.Keys())

	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, views)

	err = env.registry.Delete(ctx, "tenant-1", "weather")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestRegistry_ListTools(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(3, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
		Labels:      []string{"utilities"},
	})
	require.NoError(t, err)

	tools, err := env.registry.ListTools(ctx, "tenant-1", "weather")
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, []string{"op0", "op1", "op2"}, []string{tools[0].Name, tools[1].Name, tools[2].Name})
	assert.Equal(t, []string{"utilities"}, tools[0].Labels)

	_, err = env.registry.ListTools(ctx, "tenant-1", "missing")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	_, err = env.registry.ListTools(ctx, "tenant-2", "weather")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestRegistry_TestPreview_Ephemeral(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "valid-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	doc := schemaWithTools(1, ts.URL)

	payload, err := env.registry.TestPreview(ctx, "tenant-1", PreviewRequest{
		ProviderName: "not-saved-yet",
		OperationID:  "op0",
		Credentials:  apiKeyCredentials("wrong-key"),
		Schema:       doc,
	})
	require.NoError(t, err)
	errMsg, ok := payload["error"].(string)
	require.True(t, ok, "expected an error payload, got %v", payload)
	assert.Contains(t, errMsg, "401")

	payload, err = env.registry.TestPreview(ctx, "tenant-1", PreviewRequest{
		ProviderName: "not-saved-yet",
		OperationID:  "op0",
		Credentials:  apiKeyCredentials("valid-key"),
		Schema:       doc,
	})
	require.NoError(t, err)
	assert.NotContains(t, payload, "error")
	assert.Contains(t, payload["result"], "ok")

	// The preview never persisted anything.
	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRegistry_TestPreview_UnknownTool(t *testing.T) {
	env := setupRegistry(t)

	_, err := env.registry.TestPreview(context.Background(), "tenant-1", PreviewRequest{
		ProviderName: "weather",
		OperationID:  "no-such-op",
		Credentials:  map[string]string{"auth_type": "none"},
		Schema:       schemaWithTools(1, "https://api.example.com"),
	})
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestRegistry_TestPreview_BadCredentialsPayload(t *testing.T) {
	env := setupRegistry(t)

	payload, err := env.registry.TestPreview(context.Background(), "tenant-1", PreviewRequest{
		ProviderName: "weather",
		OperationID:  "op0",
		Credentials:  map[string]string{"auth_type": "api_key"},
		Schema:       schemaWithTools(1, "https://api.example.com"),
	})
	require.NoError(t, err)
	assert.Contains(t, payload, "error")
}

func TestRegistry_TestPreview_UsesStoredSecret(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	var receivedKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedKey = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	doc := schemaWithTools(1, ts.URL)
	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      doc,
		Credentials: apiKeyCredentials("super-secret-value"),
	})
	require.NoError(t, err)

	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	maskedValue := views[0].MaskedCredentials["api_key_value"]

	// Echoing the mask in a preview still tests the stored secret.
	payload, err := env.registry.TestPreview(ctx, "tenant-1", PreviewRequest{
		ProviderName: "weather",
		OperationID:  "op0",
		Credentials: map[string]string{
			"auth_type":      "api_key",
			"api_key_header": "X-Api-Key",
			"api_key_value":  maskedValue,
		},
		Schema: doc,
	})
	require.NoError(t, err)
	assert.NotContains(t, payload, "error")
	assert.Equal(t, "super-secret-value", receivedKey)
}

func TestRegistry_FetchRemoteSchema(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	doc := schemaWithTools(2, "https://api.example.com")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi.json":
			_, _ = w.Write([]byte(doc))
		case "/garbage":
			_, _ = w.Write([]byte("certainly not a schema {"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	remote, err := env.registry.FetchRemoteSchema(ctx, "tenant-1", ts.URL+"/openapi.json")
	require.NoError(t, err)
	assert.Equal(t, "openapi", remote.SchemaType)
	assert.Equal(t, doc, remote.Schema)
	assert.Empty(t, remote.Warnings)

	// Every failure mode looks the same to the caller.
	_, err = env.registry.FetchRemoteSchema(ctx, "tenant-1", ts.URL+"/missing")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidSchema))

	_, err = env.registry.FetchRemoteSchema(ctx, "tenant-1", ts.URL+"/garbage")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidSchema))

	_, err = env.registry.FetchRemoteSchema(ctx, "tenant-1", "http://127.0.0.1:1/unreachable")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidSchema))
}

func TestRegistry_GetProvider(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      schemaWithTools(2, "https://api.example.com"),
		Credentials: apiKeyCredentials("super-secret-value"),
		Labels:      []string{"search"},
	})
	require.NoError(t, err)

	view, err := env.registry.GetProvider(ctx, "tenant-1", "weather")
	require.NoError(t, err)
	assert.Equal(t, "weather", view.Name)
	assert.Equal(t, "openapi", view.SchemaType)
	assert.Equal(t, []string{"search"}, view.Labels)
	require.Len(t, view.Tools, 2)
	assert.NotEqual(t, "super-secret-value", view.MaskedCredentials["api_key_value"])

	// Tenant scoping and absence both read as not found.
	_, err = env.registry.GetProvider(ctx, "tenant-2", "weather")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
	_, err = env.registry.GetProvider(ctx, "tenant-1", "climate")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestRegistry_ParseSchema(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	result, err := env.registry.ParseSchema(ctx, schemaWithTools(3, "https://api.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "openapi", result.SchemaType)
	require.Len(t, result.ParametersSchema, 3)
	assert.Equal(t, "op0", result.ParametersSchema[0].OperationID)
	require.Len(t, result.CredentialsSchema, 3)
	assert.Equal(t, "auth_type", result.CredentialsSchema[0].Name)
	assert.Empty(t, result.Warnings)

	_, err = env.registry.ParseSchema(ctx, "{not a schema")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidSchema))

	// Nothing was persisted along the way.
	views, err := env.registry.ListProviders(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRegistry_SchemaTypeEnum(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	bogus := UpsertRequest{
		Name:        "weather",
		SchemaType:  "definitely-not-a-schema-type",
		Schema:      schemaWithTools(1, "https://api.example.com"),
		Credentials: map[string]string{"auth_type": "none"},
	}
	_, err := env.registry.Create(ctx, "tenant-1", "user-1", bogus)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	valid := bogus
	valid.SchemaType = "openapi"
	_, err = env.registry.Create(ctx, "tenant-1", "user-1", valid)
	require.NoError(t, err)

	_, err = env.registry.Update(ctx, "tenant-1", "weather", bogus)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	_, err = env.registry.TestPreview(ctx, "tenant-1", PreviewRequest{
		ProviderName: "weather",
		OperationID:  "op0",
		SchemaType:   "definitely-not-a-schema-type",
		Credentials:  map[string]string{"auth_type": "none"},
		Schema:       schemaWithTools(1, "https://api.example.com"),
	})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}

func TestRegistry_DescriptionFallsBackToSchema(t *testing.T) {
	env := setupRegistry(t)
	ctx := context.Background()

	doc := `{"openapi":"3.0.0","info":{"title":"Test API","description":"weather lookups for agents","version":"1.0.0"},` +
		`"servers":[{"url":"https://api.example.com"}],"paths":{"/op0":{"get":{"operationId":"op0","summary":"op",` +
		`"responses":{"200":{"description":"ok"}}}}}}`

	rec, err := env.registry.Create(ctx, "tenant-1", "user-1", UpsertRequest{
		Name:        "weather",
		Schema:      doc,
		Credentials: map[string]string{"auth_type": "none"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather lookups for agents", rec.Description)

	// An explicit description wins over the document metadata.
	rec, err = env.registry.Update(ctx, "tenant-1", "weather", UpsertRequest{
		Name:        "weather",
		Description: "hand-written",
		Schema:      doc,
		Credentials: map[string]string{"auth_type": "none"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hand-written", rec.Description)

	// Clearing it on update restores the metadata fallback.
	rec, err = env.registry.Update(ctx, "tenant-1", "weather", UpsertRequest{
		Name:        "weather",
		Schema:      doc,
		Credentials: map[string]string{"auth_type": "none"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather lookups for agents", rec.Description)
}
