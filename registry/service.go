// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/toolhub/internal/cache"
	"github.com/BaSui01/toolhub/provider"
	"github.com/BaSui01/toolhub/schema"
	"github.com/BaSui01/toolhub/store"
	"github.com/BaSui01/toolhub/types"
	"github.com/BaSui01/toolhub/vault"
)

// maxBundlesPerProvider caps the number of operations one provider may
// expose. Creates and updates whose schema compiles to more fail.
const maxBundlesPerProvider = 100

// listConcurrency bounds the number of providers assembled in parallel
// by ListProviders.
const listConcurrency = 4

// RecordStore is the persistence surface the registry needs for
// provider records. *store.ProviderRepo satisfies it.
type RecordStore interface {
	FindByName(ctx context.Context, tenantID, name string) (*store.ProviderRecord, error)
	List(ctx context.Context, tenantID string) ([]store.ProviderRecord, error)
	Create(ctx context.Context, rec *store.ProviderRecord) error
	Update(ctx context.Context, rec *store.ProviderRecord) error
	Delete(ctx context.Context, tenantID, name string) error
}

// LabelStore is the label binding surface. *store.LabelStore satisfies it.
type LabelStore interface {
	ReplaceLabels(ctx context.Context, providerID string, labels []string) error
	GetLabels(ctx context.Context, providerIDs []string) (map[string][]string, error)
}

// Registry is the tenant-scoped provider management service.
type Registry struct {
	records  RecordStore
	labels   LabelStore
	compiler *schema.Compiler
	fetcher  Fetcher
	cipher   *vault.Cipher
	cache    *cache.Manager
	logger   *zap.Logger
}

// New wires a registry. fetcher serves both remote schema downloads and
// plugin manifest resolution inside the compiler; cacheManager may be
// nil, credential reads then always hit the store.
func New(records RecordStore, labels LabelStore, fetcher Fetcher, cipher *vault.Cipher, cacheManager *cache.Manager, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		records:  records,
		labels:   labels,
		compiler: schema.NewCompiler(logger, fetcher),
		fetcher:  fetcher,
		cipher:   cipher,
		cache:    cacheManager,
		logger:   logger.With(zap.String("component", "registry")),
	}
}

// Compiler exposes the registry's schema compiler for read paths that
// only need parsing, such as schema preview endpoints.
func (r *Registry) Compiler() *schema.Compiler {
	return r.compiler
}

// ParseSchema compiles a submitted document without persisting anything
// and returns its operations together with the credential form schema
// the frontend renders next to them.
func (r *Registry) ParseSchema(ctx context.Context, raw string) (*ParseResult, error) {
	result, err := r.compiler.Compile(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &ParseResult{
		SchemaType:        result.SchemaType,
		ParametersSchema:  result.Bundles,
		CredentialsSchema: provider.CredentialSchema(),
		Warnings:          result.Warnings,
	}, nil
}

// validateSchemaType rejects a submitted schema type outside the closed
// set of recognized names. Empty means the caller defers to detection.
func validateSchemaType(v string) error {
	if v != "" && !schema.ValidType(v) {
		return types.NewValidationError(fmt.Sprintf("invalid schema type %s", v))
	}
	return nil
}

// Create registers a new provider for the tenant. The record write is
// transactional; label bindings are applied best-effort after commit.
func (r *Registry) Create(ctx context.Context, tenantID, userID string, req UpsertRequest) (*store.ProviderRecord, error) {
	if err := validateSchemaType(req.SchemaType); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, types.NewValidationError("provider name must not be empty")
	}

	if _, err := r.records.FindByName(ctx, tenantID, name); err == nil {
		return nil, types.NewConflictError(fmt.Sprintf("provider %s already exists", name))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check provider %s: %w", name, err)
	}

	result, err := r.compiler.Compile(ctx, req.Schema)
	if err != nil {
		return nil, err
	}
	if len(result.Bundles) > maxBundlesPerProvider {
		return nil, types.NewLimitExceededError(fmt.Sprintf(
			"schema defines %d tools, the limit per provider is %d", len(result.Bundles), maxBundlesPerProvider))
	}

	// A description left blank falls back to the document's own
	// info.description metadata.
	description := req.Description
	if description == "" {
		description = result.Description
	}

	rec := &store.ProviderRecord{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		Name:             name,
		Icon:             req.Icon,
		Description:      description,
		SchemaType:       result.SchemaType,
		Schema:           req.Schema,
		PrivacyPolicy:    req.PrivacyPolicy,
		CustomDisclaimer: req.CustomDisclaimer,
		UserID:           userID,
	}

	normalized, err := r.validateCredentials(rec, result.Bundles, req.Credentials)
	if err != nil {
		return nil, err
	}

	vlt := r.deriveVault(rec)
	encrypted, err := vlt.Encrypt(normalized)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials for provider %s: %w", name, err)
	}
	if err := rec.SetCredentials(encrypted); err != nil {
		return nil, err
	}

	if err := r.records.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, types.NewConflictError(fmt.Sprintf("provider %s already exists", name))
		}
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}

	r.applyLabels(ctx, rec.ID, req.Labels)

	r.logger.Info("创建 API 工具提供者",
		zap.String("tenant_id", tenantID),
		zap.String("provider", name),
		zap.Int("tools", len(result.Bundles)),
	)
	return rec, nil
}

// Update rewrites an existing provider addressed by its original name.
// Submitted credentials that echo a stored mask keep the stored secret;
// see vault.Merge. The credential cache entry is dropped after commit.
func (r *Registry) Update(ctx context.Context, tenantID, originalName string, req UpsertRequest) (*store.ProviderRecord, error) {
	if err := validateSchemaType(req.SchemaType); err != nil {
		return nil, err
	}
	rec, err := r.records.FindByName(ctx, tenantID, originalName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewNotFoundError(fmt.Sprintf("provider %s not found", originalName))
		}
		return nil, fmt.Errorf("load provider %s: %w", originalName, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, types.NewValidationError("provider name must not be empty")
	}
	if name != rec.Name {
		if _, err := r.records.FindByName(ctx, tenantID, name); err == nil {
			return nil, types.NewConflictError(fmt.Sprintf("provider %s already exists", name))
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check provider %s: %w", name, err)
		}
	}

	result, err := r.compiler.Compile(ctx, req.Schema)
	if err != nil {
		return nil, err
	}
	if len(result.Bundles) > maxBundlesPerProvider {
		return nil, types.NewLimitExceededError(fmt.Sprintf(
			"schema defines %d tools, the limit per provider is %d", len(result.Bundles), maxBundlesPerProvider))
	}

	stored, err := rec.CredentialsMap()
	if err != nil {
		return nil, fmt.Errorf("read stored credentials for provider %s: %w", originalName, err)
	}
	vlt := r.deriveVault(rec)
	storedPlain := vlt.Decrypt(ctx, stored)
	merged := vault.Merge(storedPlain, vlt.Mask(storedPlain), req.Credentials)

	description := req.Description
	if description == "" {
		description = result.Description
	}

	rec.Name = name
	rec.Icon = req.Icon
	rec.Description = description
	rec.SchemaType = result.SchemaType
	rec.Schema = req.Schema
	rec.PrivacyPolicy = req.PrivacyPolicy
	rec.CustomDisclaimer = req.CustomDisclaimer

	normalized, err := r.validateCredentials(rec, result.Bundles, merged)
	if err != nil {
		return nil, err
	}
	encrypted, err := vlt.Encrypt(normalized)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials for provider %s: %w", name, err)
	}
	if err := rec.SetCredentials(encrypted); err != nil {
		return nil, err
	}

	if err := r.records.Update(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, types.NewConflictError(fmt.Sprintf("provider %s already exists", name))
		}
		return nil, fmt.Errorf("update provider %s: %w", name, err)
	}

	vlt.Cache().Invalidate(ctx)
	r.applyLabels(ctx, rec.ID, req.Labels)

	r.logger.Info("更新 API 工具提供者",
		zap.String("tenant_id", tenantID),
		zap.String("provider", name),
	)
	return rec, nil
}

// Delete removes a provider and drops its cached credentials.
func (r *Registry) Delete(ctx context.Context, tenantID, name string) error {
	rec, err := r.records.FindByName(ctx, tenantID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.NewNotFoundError(fmt.Sprintf("provider %s not found", name))
		}
		return fmt.Errorf("load provider %s: %w", name, err)
	}

	if err := r.records.Delete(ctx, tenantID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.NewNotFoundError(fmt.Sprintf("provider %s not found", name))
		}
		return fmt.Errorf("delete provider %s: %w", name, err)
	}

	vault.NewCacheHandle(r.cache, r.cipher, tenantID, rec.ID, r.logger).Invalidate(ctx)

	r.logger.Info("删除 API 工具提供者",
		zap.String("tenant_id", tenantID),
		zap.String("provider", name),
	)
	return nil
}

// ListTools compiles the stored schema of one provider and returns its
// operations as tool schemas annotated with the provider's labels.
func (r *Registry) ListTools(ctx context.Context, tenantID, name string) ([]types.ToolSchema, error) {
	rec, err := r.records.FindByName(ctx, tenantID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewNotFoundError(fmt.Sprintf("provider %s not found", name))
		}
		return nil, fmt.Errorf("load provider %s: %w", name, err)
	}

	ctl, err := r.controllerFor(rec)
	if err != nil {
		return nil, err
	}
	if err := ctl.LoadFromSchema(ctx, r.compiler, rec.Schema); err != nil {
		return nil, fmt.Errorf("compile schema for provider %s: %w", name, err)
	}

	labelMap, err := r.labels.GetLabels(ctx, []string{rec.ID})
	if err != nil {
		return nil, fmt.Errorf("load labels for provider %s: %w", name, err)
	}
	return r.toolSchemas(ctl, labelMap[rec.ID]), nil
}

// ListProviders returns the tenant's providers as masked views. Any
// record whose stored schema no longer compiles fails the whole listing;
// a broken provider should surface loudly, not vanish from the list.
func (r *Registry) ListProviders(ctx context.Context, tenantID string) ([]ProviderView, error) {
	recs, err := r.records.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	ids := make([]string, 0, len(recs))
	for i := range recs {
		ids = append(ids, recs[i].ID)
	}
	labelMap, err := r.labels.GetLabels(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	// Schema compilation and credential decryption dominate list cost,
	// so providers are assembled concurrently. Each goroutine writes its
	// own slot to keep record order stable.
	views := make([]ProviderView, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i := range recs {
		rec := &recs[i]
		slot := &views[i]
		g.Go(func() error {
			view, err := r.buildView(gctx, rec, labelMap[rec.ID])
			if err != nil {
				return err
			}
			*slot = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// GetProvider returns one provider as a masked view, rehydrating its
// controller from the stored schema.
func (r *Registry) GetProvider(ctx context.Context, tenantID, name string) (*ProviderView, error) {
	rec, err := r.records.FindByName(ctx, tenantID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewNotFoundError(fmt.Sprintf("provider %s not found", name))
		}
		return nil, fmt.Errorf("load provider %s: %w", name, err)
	}

	labelMap, err := r.labels.GetLabels(ctx, []string{rec.ID})
	if err != nil {
		return nil, fmt.Errorf("load labels for provider %s: %w", name, err)
	}
	view, err := r.buildView(ctx, rec, labelMap[rec.ID])
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// buildView assembles the masked projection of one stored record.
func (r *Registry) buildView(ctx context.Context, rec *store.ProviderRecord, labels []string) (ProviderView, error) {
	ctl, err := r.controllerFor(rec)
	if err != nil {
		return ProviderView{}, fmt.Errorf("provider %s: %w", rec.Name, err)
	}
	if err := ctl.LoadFromSchema(ctx, r.compiler, rec.Schema); err != nil {
		return ProviderView{}, fmt.Errorf("compile schema for provider %s: %w", rec.Name, err)
	}

	stored, err := rec.CredentialsMap()
	if err != nil {
		return ProviderView{}, fmt.Errorf("read stored credentials for provider %s: %w", rec.Name, err)
	}
	vlt := r.deriveVault(rec)

	return ProviderView{
		ID:                rec.ID,
		Name:              rec.Name,
		Icon:              rec.Icon,
		Description:       rec.Description,
		SchemaType:        rec.SchemaType,
		PrivacyPolicy:     rec.PrivacyPolicy,
		CustomDisclaimer:  rec.CustomDisclaimer,
		MaskedCredentials: vlt.Mask(vlt.Decrypt(ctx, stored)),
		Labels:            labels,
		Tools:             r.toolSchemas(ctl, labels),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

// TestPreview performs a live credential check against one operation of
// the submitted schema. Schema compile failures and unknown operation
// ids are returned as errors; everything after that point, including
// credential format problems and the live call itself, is reported in
// the payload so the caller can show it verbatim.
func (r *Registry) TestPreview(ctx context.Context, tenantID string, req PreviewRequest) (map[string]any, error) {
	if err := validateSchemaType(req.SchemaType); err != nil {
		return nil, err
	}
	result, err := r.compiler.Compile(ctx, req.Schema)
	if err != nil {
		return nil, err
	}

	found := false
	for _, b := range result.Bundles {
		if b.OperationID == req.OperationID {
			found = true
			break
		}
	}
	if !found {
		return nil, types.NewNotFoundError(fmt.Sprintf("tool %s not found in schema", req.OperationID))
	}

	rec, err := r.records.FindByName(ctx, tenantID, req.ProviderName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load provider %s: %w", req.ProviderName, err)
		}
		// Not persisted yet: preview against an ephemeral record.
		rec = &store.ProviderRecord{TenantID: tenantID, Name: req.ProviderName}
	}

	credentials := req.Credentials
	if rec.ID != "" {
		stored, err := rec.CredentialsMap()
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		vlt := r.deriveVault(rec)
		storedPlain := vlt.Decrypt(ctx, stored)
		credentials = vault.Merge(storedPlain, vlt.Mask(storedPlain), req.Credentials)
	}

	auth, err := provider.ParseAuthType(credentials["auth_type"])
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	ctl := provider.FromRecord(rec, auth, r.logger)
	ctl.LoadBundles(result.Bundles)

	normalized, err := ctl.ValidateCredentialsFormat(credentials)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}

	tool, err := ctl.GetTool(req.OperationID)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	bound := ctl.BindRuntime(tool, tenantID, normalized)
	return bound.ValidateCredentials(ctx, req.Parameters), nil
}

// FetchRemoteSchema downloads a schema document and compiles it. Every
// failure mode, transport, HTTP status or parse, collapses into one
// generic invalid-schema error so remote error detail is never echoed
// back to the caller.
func (r *Registry) FetchRemoteSchema(ctx context.Context, tenantID, url string) (*RemoteSchema, error) {
	text, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		r.logger.Warn("拉取远程 Schema 失败",
			zap.String("tenant_id", tenantID),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, types.NewInvalidSchemaError("invalid schema, please check the url you provided")
	}

	result, err := r.compiler.Compile(ctx, text)
	if err != nil {
		r.logger.Warn("远程 Schema 解析失败",
			zap.String("tenant_id", tenantID),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, types.NewInvalidSchemaError("invalid schema, please check the url you provided")
	}

	return &RemoteSchema{
		Schema:     text,
		SchemaType: result.SchemaType,
		Warnings:   result.Warnings,
	}, nil
}

// validateCredentials parses the auth type, checks the submitted values
// against the credential schema and returns the normalized copy.
func (r *Registry) validateCredentials(rec *store.ProviderRecord, bundles []schema.Bundle, credentials map[string]string) (map[string]string, error) {
	auth, err := provider.ParseAuthType(credentials["auth_type"])
	if err != nil {
		return nil, err
	}
	ctl := provider.FromRecord(rec, auth, r.logger)
	ctl.LoadBundles(bundles)
	return ctl.ValidateCredentialsFormat(credentials)
}

// controllerFor rebuilds a controller from a stored record, recovering
// the auth type from the stored credential dictionary.
func (r *Registry) controllerFor(rec *store.ProviderRecord) (*provider.Controller, error) {
	stored, err := rec.CredentialsMap()
	if err != nil {
		return nil, fmt.Errorf("read stored credentials: %w", err)
	}
	auth := provider.AuthNone
	if raw, ok := stored["auth_type"]; ok {
		auth, err = provider.ParseAuthType(raw)
		if err != nil {
			return nil, err
		}
	}
	return provider.FromRecord(rec, auth, r.logger), nil
}

// deriveVault builds the per-provider vault with its cache handle.
func (r *Registry) deriveVault(rec *store.ProviderRecord) *vault.Vault {
	handle := vault.NewCacheHandle(r.cache, r.cipher, rec.TenantID, rec.ID, r.logger)
	return vault.Derive(rec.TenantID, provider.SecretFieldNames(), r.cipher, handle, r.logger)
}

// toolSchemas projects the controller's bundles into display schemas.
func (r *Registry) toolSchemas(ctl *provider.Controller, labels []string) []types.ToolSchema {
	bundles := ctl.Bundles()
	out := make([]types.ToolSchema, 0, len(bundles))
	for _, b := range bundles {
		tool, err := ctl.GetTool(b.OperationID)
		if err != nil {
			continue
		}
		ts := tool.Schema()
		ts.Labels = labels
		out = append(out, ts)
	}
	return out
}

// applyLabels replaces the provider's label bindings after the record
// write committed. Failures are logged, never surfaced: labels are
// decoration, the provider itself is already durable.
func (r *Registry) applyLabels(ctx context.Context, providerID string, labels []string) {
	if labels == nil {
		return
	}
	if err := r.labels.ReplaceLabels(ctx, providerID, labels); err != nil {
		r.logger.Warn("标签写入失败，提供者本体已提交",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
}
