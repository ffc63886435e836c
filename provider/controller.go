package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/schema"
	"github.com/BaSui01/toolhub/store"
	"github.com/BaSui01/toolhub/types"
)

// Controller is the runtime representation of one provider: identity,
// auth type, and the operation bundles compiled from its schema. Never
// persisted; rebuilt from the stored record on every request.
type Controller struct {
	ID       string
	TenantID string
	Name     string
	Icon     string
	AuthType AuthType

	bundles []schema.Bundle
	logger  *zap.Logger
}

// FromRecord builds a controller around a stored record. Bundles are not
// compiled here; attach them with LoadBundles or LoadFromSchema.
func FromRecord(rec *store.ProviderRecord, auth AuthType, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		ID:       rec.ID,
		TenantID: rec.TenantID,
		Name:     rec.Name,
		Icon:     rec.Icon,
		AuthType: auth,
		logger:   logger.With(zap.String("component", "provider_controller")),
	}
}

// LoadBundles attaches already-compiled bundles.
func (c *Controller) LoadBundles(bundles []schema.Bundle) {
	c.bundles = bundles
}

// LoadFromSchema compiles the record's schema text and attaches the result.
func (c *Controller) LoadFromSchema(ctx context.Context, compiler *schema.Compiler, raw string) error {
	result, err := compiler.Compile(ctx, raw)
	if err != nil {
		return err
	}
	c.bundles = result.Bundles
	return nil
}

// Bundles returns the loaded operation bundles.
func (c *Controller) Bundles() []schema.Bundle {
	return c.bundles
}

// ValidateCredentialsFormat checks a submitted credential map against the
// fixed schema and the closed auth-type enum. Missing optional fields are
// filled from schema defaults; the normalized copy is returned. Shape
// problems come back as validation errors, never panics.
func (c *Controller) ValidateCredentialsFormat(credentials map[string]string) (map[string]string, error) {
	rawAuth, ok := credentials["auth_type"]
	if !ok || rawAuth == "" {
		return nil, types.NewValidationError("auth_type is required")
	}
	auth, err := ParseAuthType(rawAuth)
	if err != nil {
		return nil, err
	}

	fields := CredentialSchema()
	known := make(map[string]CredentialField, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}
	for name := range credentials {
		if _, ok := known[name]; !ok {
			return nil, types.NewValidationError(fmt.Sprintf("unknown credential field %q", name))
		}
	}

	required := map[string]bool{}
	for _, name := range requiredFields(auth) {
		required[name] = true
	}

	normalized := make(map[string]string, len(fields))
	normalized["auth_type"] = string(auth)
	for _, f := range fields {
		if f.Name == "auth_type" {
			continue
		}
		value, ok := credentials[f.Name]
		if !ok || value == "" {
			if required[f.Name] && f.Default == "" {
				return nil, types.NewValidationError(fmt.Sprintf("credential field %q is required for auth_type %q", f.Name, auth))
			}
			value = f.Default
		}
		if f.Type == FieldSelect {
			if err := validateSelectValue(f, value); err != nil {
				return nil, err
			}
		}
		normalized[f.Name] = value
	}
	return normalized, nil
}

func validateSelectValue(field CredentialField, value string) error {
	for _, opt := range field.Options {
		if opt.Value == value {
			return nil
		}
	}
	return types.NewValidationError(fmt.Sprintf("invalid value %q for credential field %q", value, field.Name))
}

// GetTool returns the unbound tool for one operation.
func (c *Controller) GetTool(operationID string) (*Tool, error) {
	for _, bundle := range c.bundles {
		if bundle.OperationID == operationID {
			return &Tool{
				bundle:       bundle,
				providerName: c.Name,
				authType:     c.AuthType,
				logger:       c.logger,
			}, nil
		}
	}
	return nil, types.NewNotFoundError(fmt.Sprintf("tool %q not found in provider %q", operationID, c.Name))
}

// BindRuntime returns a copy of the tool bound to one tenant's
// credentials, ready to invoke.
func (c *Controller) BindRuntime(tool *Tool, tenantID string, credentials map[string]string) *Tool {
	bound := *tool
	bound.tenantID = tenantID
	bound.credentials = credentials
	return &bound
}
