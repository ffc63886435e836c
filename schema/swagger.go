package schema

import (
	"fmt"
	"strings"

	"github.com/BaSui01/toolhub/types"
)

// convertSwagger rewrites a Swagger 2.0 document into the OpenAPI 3.x
// structure the compiler understands. Lossy constructs produce warnings.
func convertSwagger(doc map[string]any) (map[string]any, []string, error) {
	var warnings []string

	info, _ := doc["info"].(map[string]any)
	if info == nil {
		info = map[string]any{}
		warnings = append(warnings, "swagger document has no info section")
	}
	if _, ok := info["title"]; !ok {
		info["title"] = "Swagger"
	}
	if _, ok := info["version"]; !ok {
		info["version"] = "1.0.0"
	}

	host, _ := doc["host"].(string)
	if host == "" {
		return nil, nil, types.NewInvalidSchemaError("no server found in swagger document")
	}
	scheme := "https"
	if schemes, ok := doc["schemes"].([]any); ok && len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	basePath, _ := doc["basePath"].(string)
	serverURL := fmt.Sprintf("%s://%s%s", scheme, host, strings.TrimSuffix(basePath, "/"))

	rawPaths, _ := doc["paths"].(map[string]any)
	if len(rawPaths) == 0 {
		return nil, nil, types.NewInvalidSchemaError("no paths found in swagger document")
	}

	paths := make(map[string]any, len(rawPaths))
	for path, rawItem := range rawPaths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		converted := make(map[string]any, len(item))
		for method, rawOp := range item {
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			converted[method] = convertSwaggerOperation(op)
		}
		paths[path] = converted
	}

	return map[string]any{
		"openapi": "3.0.0",
		"info":    info,
		"servers": []any{map[string]any{"url": serverURL}},
		"paths":   paths,
	}, warnings, nil
}

// convertSwaggerOperation lifts inline parameter types into schema objects
// and turns the body parameter into a requestBody.
func convertSwaggerOperation(op map[string]any) map[string]any {
	out := map[string]any{}
	for _, key := range []string{"operationId", "summary", "description", "tags", "responses"} {
		if v, ok := op[key]; ok {
			out[key] = v
		}
	}

	var params []any
	rawParams, _ := op["parameters"].([]any)
	for _, rawParam := range rawParams {
		p, ok := rawParam.(map[string]any)
		if !ok {
			continue
		}
		if in, _ := p["in"].(string); in == "body" {
			body := map[string]any{
				"content": map[string]any{
					"application/json": map[string]any{"schema": p["schema"]},
				},
			}
			if req, ok := p["required"]; ok {
				body["required"] = req
			}
			out["requestBody"] = body
			continue
		}
		converted := map[string]any{}
		for _, key := range []string{"name", "in", "description", "required"} {
			if v, ok := p[key]; ok {
				converted[key] = v
			}
		}
		schemaObj := map[string]any{}
		if t, ok := p["type"]; ok {
			schemaObj["type"] = t
		}
		if d, ok := p["default"]; ok {
			schemaObj["default"] = d
		}
		converted["schema"] = schemaObj
		params = append(params, converted)
	}
	if len(params) > 0 {
		out["parameters"] = params
	}
	return out
}
