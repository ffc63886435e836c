// Package toolhub provides a top-level convenience entry point for embedding
// the API tool provider registry in another service.
//
// Usage:
//
//	import "github.com/BaSui01/toolhub"
//
//	reg := toolhub.NewRegistry(records, labels, fetcher, cipher, cacheManager, logger)
//	rec, err := reg.Create(ctx, tenantID, userID, req)
//
// This is a thin wrapper around [registry.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package toolhub

import (
	"github.com/BaSui01/toolhub/registry"
)

// Registry manages API tool providers for a tenant: schema compilation,
// credential encryption, labels, and live tool invocation previews.
type Registry = registry.Registry

// UpsertRequest carries the fields for creating or updating a provider.
type UpsertRequest = registry.UpsertRequest

// PreviewRequest describes a single tool test invocation.
type PreviewRequest = registry.PreviewRequest

// ProviderView is the read model returned by provider listings.
type ProviderView = registry.ProviderView

// RemoteSchema is a schema document fetched from a remote URL.
type RemoteSchema = registry.RemoteSchema

// NewRegistry creates a provider registry. See [registry.New].
var NewRegistry = registry.New

// NewHTTPFetcher creates the default remote schema fetcher. See
// [registry.NewHTTPFetcher].
var NewHTTPFetcher = registry.NewHTTPFetcher
