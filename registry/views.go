// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

package registry

import (
	"time"

	"github.com/BaSui01/toolhub/provider"
	"github.com/BaSui01/toolhub/schema"
	"github.com/BaSui01/toolhub/types"
)

// UpsertRequest carries the caller-supplied fields of a provider create
// or update. On update the target provider is addressed by its original
// name, so Name here may rename it.
type UpsertRequest struct {
	Name             string            `json:"name"`
	Icon             string            `json:"icon"`
	Description      string            `json:"description"`
	SchemaType       string            `json:"schema_type"`
	Schema           string            `json:"schema"`
	PrivacyPolicy    string            `json:"privacy_policy"`
	CustomDisclaimer string            `json:"custom_disclaimer"`
	Credentials      map[string]string `json:"credentials"`
	Labels           []string          `json:"labels"`
}

// PreviewRequest drives a live credential test against one operation of
// a submitted schema. The provider may or may not be persisted yet.
type PreviewRequest struct {
	ProviderName string            `json:"provider_name"`
	OperationID  string            `json:"tool_name"`
	Credentials  map[string]string `json:"credentials"`
	Parameters   map[string]any    `json:"parameters"`
	SchemaType   string            `json:"schema_type"`
	Schema       string            `json:"schema"`
}

// ProviderView is the tenant-facing projection of a stored provider.
// Credentials are masked; the raw stored values never leave the registry.
type ProviderView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Icon              string             `json:"icon"`
	Description       string             `json:"description"`
	SchemaType        string             `json:"schema_type"`
	PrivacyPolicy     string             `json:"privacy_policy"`
	CustomDisclaimer  string             `json:"custom_disclaimer"`
	MaskedCredentials map[string]string  `json:"masked_credentials"`
	Labels            []string           `json:"labels"`
	Tools             []types.ToolSchema `json:"tools"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// RemoteSchema is the result of downloading and compiling a schema URL.
type RemoteSchema struct {
	Schema     string   `json:"schema"`
	SchemaType string   `json:"schema_type"`
	Warnings   []string `json:"warnings"`
}

// ParseResult is the outcome of parsing a schema without persisting
// anything: the compiled operations next to the credential form schema
// a frontend renders for the provider being drafted.
type ParseResult struct {
	SchemaType        string                     `json:"schema_type"`
	ParametersSchema  []schema.Bundle            `json:"parameters_schema"`
	CredentialsSchema []provider.CredentialField `json:"credentials_schema"`
	Warnings          []string                   `json:"warnings,omitempty"`
}
