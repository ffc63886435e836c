package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/toolhub/types"
)

// methodOrder fixes the per-path operation order used when building bundles.
var methodOrder = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Resolver fetches a remote document referenced by a plugin manifest.
type Resolver interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Compiler compiles raw schema documents into ordered bundles.
type Compiler struct {
	logger   *zap.Logger
	resolver Resolver
}

// NewCompiler creates a schema compiler. resolver may be nil; plugin
// manifests then fail to compile.
func NewCompiler(logger *zap.Logger, resolver Resolver) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		logger:   logger.With(zap.String("component", "schema_compiler")),
		resolver: resolver,
	}
}

// Compile parses a raw document (JSON or YAML; OpenAPI 3.x, Swagger 2.0,
// or an OpenAI plugin manifest) into ordered bundles. All parse failures
// come back as INVALID_SCHEMA structured errors.
func (c *Compiler) Compile(ctx context.Context, raw string) (*CompileResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, types.NewInvalidSchemaError("empty schema document")
	}

	root, doc, err := decodeLoose(raw)
	if err != nil {
		return nil, types.NewInvalidSchemaError("schema is not valid JSON or YAML").WithCause(err)
	}

	switch {
	case isOpenAPI(doc):
		result, err := c.compileOpenAPI(doc, pathOrder(root), nil)
		if err != nil {
			return nil, err
		}
		result.SchemaType = TypeOpenAPI
		return result, nil

	case isSwagger(doc):
		converted, warnings, err := convertSwagger(doc)
		if err != nil {
			return nil, err
		}
		result, err := c.compileOpenAPI(converted, pathOrder(root), warnings)
		if err != nil {
			return nil, err
		}
		result.SchemaType = TypeSwagger
		return result, nil

	case isPluginManifest(doc):
		result, err := c.compilePluginManifest(ctx, doc)
		if err != nil {
			return nil, err
		}
		result.SchemaType = TypeOpenAIPlugin
		return result, nil

	default:
		return nil, types.NewInvalidSchemaError("unrecognized schema type, expected openapi, swagger or an openai plugin manifest")
	}
}

// decodeLoose parses the document once as a yaml node tree (JSON is a YAML
// subset) and once as a generic map for structural inspection.
func decodeLoose(raw string) (*yaml.Node, map[string]any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
		return nil, nil, err
	}
	var doc map[string]any
	if err := root.Decode(&doc); err != nil {
		return nil, nil, err
	}
	return &root, doc, nil
}

func isOpenAPI(doc map[string]any) bool {
	v, ok := doc["openapi"].(string)
	return ok && strings.HasPrefix(v, "3")
}

func isSwagger(doc map[string]any) bool {
	v, ok := doc["swagger"].(string)
	return ok && v == "2.0"
}

func isPluginManifest(doc map[string]any) bool {
	_, hasVersion := doc["schema_version"]
	_, hasAPI := doc["api"].(map[string]any)
	return hasVersion && hasAPI
}

// pathOrder walks the node tree and returns the keys of the top-level
// "paths" mapping in document order.
func pathOrder(root *yaml.Node) []string {
	if root == nil || len(root.Content) == 0 {
		return nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "paths" {
			continue
		}
		paths := top.Content[i+1]
		if paths.Kind != yaml.MappingNode {
			return nil
		}
		order := make([]string, 0, len(paths.Content)/2)
		for j := 0; j+1 < len(paths.Content); j += 2 {
			order = append(order, paths.Content[j].Value)
		}
		return order
	}
	return nil
}

// compileOpenAPI converts a generic document map into ordered bundles.
func (c *Compiler) compileOpenAPI(doc map[string]any, order []string, warnings []string) (*CompileResult, error) {
	spec, err := decodeDocument(doc)
	if err != nil {
		return nil, types.NewInvalidSchemaError("schema does not match the openapi structure").WithCause(err)
	}
	if len(spec.Servers) == 0 || spec.Servers[0].URL == "" {
		return nil, types.NewInvalidSchemaError("no server found in schema")
	}
	serverURL := spec.Servers[0].URL

	// Missing paths in the node tree (e.g. a resolved plugin spec) fall
	// back to map iteration order.
	if len(order) == 0 {
		for p := range spec.Paths {
			order = append(order, p)
		}
	}

	seen := make(map[string]int)
	var bundles []Bundle
	for _, path := range order {
		item, ok := spec.Paths[path]
		if !ok {
			continue
		}
		for _, method := range methodOrder {
			op := item.operation(method)
			if op == nil {
				continue
			}
			bundle, w := c.operationToBundle(serverURL, path, method, op, seen)
			warnings = append(warnings, w...)
			bundles = append(bundles, bundle)
		}
	}

	c.logger.Debug("compiled schema",
		zap.Int("bundles", len(bundles)),
		zap.Int("warnings", len(warnings)),
	)
	return &CompileResult{
		Bundles:     bundles,
		Description: spec.Info.Description,
		Warnings:    warnings,
	}, nil
}

func (p PathItem) operation(method string) *Operation {
	switch method {
	case "GET":
		return p.Get
	case "POST":
		return p.Post
	case "PUT":
		return p.Put
	case "DELETE":
		return p.Delete
	case "PATCH":
		return p.Patch
	}
	return nil
}

func (c *Compiler) operationToBundle(serverURL, path, method string, op *Operation, seen map[string]int) (Bundle, []string) {
	var warnings []string

	name := op.OperationID
	if name == "" {
		name = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizePath(path))
		warnings = append(warnings, fmt.Sprintf("operation %s %s has no operationId, using %q", method, path, name))
	}
	if n, dup := seen[name]; dup {
		seen[name] = n + 1
		renamed := fmt.Sprintf("%s_%d", name, n)
		warnings = append(warnings, fmt.Sprintf("duplicated operationId %q, renamed to %q", name, renamed))
		name = renamed
	} else {
		seen[name] = 1
	}

	summary := op.Summary
	if summary == "" {
		summary = op.Description
	}
	if summary == "" {
		warnings = append(warnings, fmt.Sprintf("operation %s has no summary or description", name))
	}

	var params []Parameter
	for _, p := range op.Parameters {
		typ := "string"
		var def any
		if p.Schema != nil {
			if p.Schema.Type != "" {
				typ = p.Schema.Type
			}
			def = p.Schema.Default
		}
		if p.Description == "" {
			warnings = append(warnings, fmt.Sprintf("parameter %q of operation %s has no description", p.Name, name))
		}
		params = append(params, Parameter{
			Name:           p.Name,
			LLMDescription: p.Description,
			Required:       p.Required,
			Type:           typ,
			Default:        def,
			In:             p.In,
		})
	}

	if op.RequestBody != nil {
		if content, ok := op.RequestBody.Content["application/json"]; ok && content.Schema != nil {
			required := make(map[string]bool, len(content.Schema.Required))
			for _, r := range content.Schema.Required {
				required[r] = true
			}
			for propName, prop := range content.Schema.Properties {
				params = append(params, Parameter{
					Name:           propName,
					LLMDescription: prop.Description,
					Required:       required[propName],
					Type:           prop.Type,
					Default:        prop.Default,
					In:             "body",
				})
			}
		}
	}

	return Bundle{
		ServerURL:   serverURL,
		Method:      method,
		Path:        path,
		Summary:     summary,
		OperationID: name,
		Parameters:  params,
		OpenAPI:     op,
		RequestBody: op.RequestBody,
	}, warnings
}

// compilePluginManifest follows the manifest's api.url and compiles the
// referenced openapi document.
func (c *Compiler) compilePluginManifest(ctx context.Context, doc map[string]any) (*CompileResult, error) {
	api, _ := doc["api"].(map[string]any)
	apiType, _ := api["type"].(string)
	if apiType != "openapi" {
		return nil, types.NewInvalidSchemaError("plugin manifest api type is not supported, only openapi is accepted")
	}
	apiURL, _ := api["url"].(string)
	if apiURL == "" {
		return nil, types.NewInvalidSchemaError("plugin manifest has no api url")
	}
	if c.resolver == nil {
		return nil, types.NewInvalidSchemaError("plugin manifests cannot be resolved here")
	}

	remote, err := c.resolver.Fetch(ctx, apiURL)
	if err != nil {
		return nil, types.NewInvalidSchemaError("failed to fetch the api document referenced by the plugin manifest").WithCause(err)
	}

	root, inner, err := decodeLoose(remote)
	if err != nil {
		return nil, types.NewInvalidSchemaError("the document referenced by the plugin manifest is not valid JSON or YAML").WithCause(err)
	}
	if !isOpenAPI(inner) {
		return nil, types.NewInvalidSchemaError("the document referenced by the plugin manifest is not an openapi schema")
	}
	return c.compileOpenAPI(inner, pathOrder(root), nil)
}

// decodeDocument converts a generic map into the typed Document via a JSON
// round trip, so both YAML and JSON inputs share one set of struct tags.
func decodeDocument(doc map[string]any) (*Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var spec Document
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "{", "")
	path = strings.ReplaceAll(path, "}", "")
	path = strings.Trim(path, "_")
	return path
}
