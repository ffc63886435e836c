package schema

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/types"
)

const petstoreJSON = `{
  "openapi": "3.0.0",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "servers": [{"url": "https://petstore.example.com/v1"}],
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "summary": "List all pets",
        "parameters": [
          {"name": "limit", "in": "query", "description": "page size", "schema": {"type": "integer", "default": 20}}
        ]
      },
      "post": {
        "operationId": "createPet",
        "summary": "Create a pet",
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["name"],
                "properties": {
                  "name": {"type": "string", "description": "pet name"},
                  "tag": {"type": "string"}
                }
              }
            }
          }
        }
      }
    },
    "/pets/{petId}": {
      "get": {
        "summary": "Get one pet",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "description": "pet id", "schema": {"type": "string"}}
        ]
      }
    }
  }
}`

func TestCompiler_OpenAPIJSON(t *testing.T) {
	t.Parallel()

	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), petstoreJSON)
	require.NoError(t, err)

	assert.Equal(t, TypeOpenAPI, result.SchemaType)
	require.Len(t, result.Bundles, 3)

	// Path order follows the document, methods GET before POST.
	assert.Equal(t, "listPets", result.Bundles[0].OperationID)
	assert.Equal(t, "createPet", result.Bundles[1].OperationID)
	assert.Equal(t, "get_pets_petId", result.Bundles[2].OperationID)

	first := result.Bundles[0]
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, "/pets", first.Path)
	assert.Equal(t, "https://petstore.example.com/v1", first.ServerURL)
	require.Len(t, first.Parameters, 1)
	assert.Equal(t, "limit", first.Parameters[0].Name)
	assert.Equal(t, "integer", first.Parameters[0].Type)
	assert.Equal(t, "query", first.Parameters[0].In)

	// Body properties are flattened into parameters.
	second := result.Bundles[1]
	names := map[string]Parameter{}
	for _, p := range second.Parameters {
		names[p.Name] = p
	}
	require.Contains(t, names, "name")
	require.Contains(t, names, "tag")
	assert.True(t, names["name"].Required)
	assert.False(t, names["tag"].Required)
	assert.Equal(t, "body", names["name"].In)

	// Missing operationId produced a warning.
	assert.NotEmpty(t, result.Warnings)
}

func TestCompiler_OpenAPIYAML(t *testing.T) {
	t.Parallel()

	raw := `
openapi: "3.0.1"
info:
  title: Weather
  version: "1.0"
servers:
  - url: https://api.weather.example.com
paths:
  /forecast:
    get:
      operationId: getForecast
      summary: Get forecast
      parameters:
        - name: city
          in: query
          required: true
          description: city name
          schema:
            type: string
  /alerts:
    get:
      operationId: listAlerts
      summary: List alerts
`
	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, TypeOpenAPI, result.SchemaType)
	require.Len(t, result.Bundles, 2)
	assert.Equal(t, "getForecast", result.Bundles[0].OperationID)
	assert.Equal(t, "listAlerts", result.Bundles[1].OperationID)
}

func TestCompiler_BundleOrderFollowsDocument(t *testing.T) {
	t.Parallel()

	// Many paths so map iteration order would almost surely differ.
	raw := `{"openapi":"3.0.0","info":{"title":"t","version":"1"},"servers":[{"url":"https://x"}],"paths":{`
	for i := 0; i < 20; i++ {
		if i > 0 {
			raw += ","
		}
		raw += fmt.Sprintf(`"/op%02d":{"get":{"operationId":"op%02d","summary":"s"}}`, i, i)
	}
	raw += `}}`

	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, result.Bundles, 20)
	for i, b := range result.Bundles {
		assert.Equal(t, fmt.Sprintf("op%02d", i), b.OperationID)
	}
}

func TestCompiler_DuplicateOperationIDs(t *testing.T) {
	t.Parallel()

	raw := `{"openapi":"3.0.0","info":{"title":"t","version":"1"},"servers":[{"url":"https://x"}],
	  "paths":{
	    "/a":{"get":{"operationId":"dup","summary":"s"}},
	    "/b":{"get":{"operationId":"dup","summary":"s"}}
	  }}`

	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, result.Bundles, 2)
	assert.Equal(t, "dup", result.Bundles[0].OperationID)
	assert.Equal(t, "dup_1", result.Bundles[1].OperationID)
	assert.NotEmpty(t, result.Warnings)
}

func TestCompiler_Swagger(t *testing.T) {
	t.Parallel()

	raw := `{
	  "swagger": "2.0",
	  "info": {"title": "Legacy", "version": "1.0"},
	  "host": "legacy.example.com",
	  "basePath": "/api",
	  "schemes": ["https"],
	  "paths": {
	    "/things": {
	      "post": {
	        "operationId": "createThing",
	        "summary": "Create a thing",
	        "parameters": [
	          {"name": "verbose", "in": "query", "type": "boolean", "description": "verbose output"},
	          {"name": "body", "in": "body", "required": true,
	           "schema": {"type": "object", "required": ["label"], "properties": {"label": {"type": "string"}}}}
	        ]
	      }
	    }
	  }
	}`

	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, TypeSwagger, result.SchemaType)
	require.Len(t, result.Bundles, 1)

	b := result.Bundles[0]
	assert.Equal(t, "https://legacy.example.com/api", b.ServerURL)
	assert.Equal(t, "createThing", b.OperationID)

	byName := map[string]Parameter{}
	for _, p := range b.Parameters {
		byName[p.Name] = p
	}
	require.Contains(t, byName, "verbose")
	assert.Equal(t, "boolean", byName["verbose"].Type)
	require.Contains(t, byName, "label")
	assert.Equal(t, "body", byName["label"].In)
	assert.True(t, byName["label"].Required)
}

func TestCompiler_SwaggerWithoutHost(t *testing.T) {
	t.Parallel()

	raw := `{"swagger": "2.0", "info": {"title": "t", "version": "1"}, "paths": {"/a": {"get": {"operationId": "a"}}}}`
	c := NewCompiler(zap.NewNop(), nil)
	_, err := c.Compile(context.Background(), raw)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidSchema, types.GetErrorCode(err))
}

type staticResolver struct {
	body string
	err  error
	urls []string
}

func (r *staticResolver) Fetch(_ context.Context, url string) (string, error) {
	r.urls = append(r.urls, url)
	return r.body, r.err
}

func TestCompiler_PluginManifest(t *testing.T) {
	t.Parallel()

	manifest := `{
	  "schema_version": "v1",
	  "name_for_human": "Petstore",
	  "api": {"type": "openapi", "url": "https://petstore.example.com/openapi.json"}
	}`

	resolver := &staticResolver{body: petstoreJSON}
	c := NewCompiler(zap.NewNop(), resolver)
	result, err := c.Compile(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, TypeOpenAIPlugin, result.SchemaType)
	assert.Len(t, result.Bundles, 3)
	require.Len(t, resolver.urls, 1)
	assert.Equal(t, "https://petstore.example.com/openapi.json", resolver.urls[0])
}

func TestCompiler_PluginManifestWithoutResolver(t *testing.T) {
	t.Parallel()

	manifest := `{"schema_version": "v1", "api": {"type": "openapi", "url": "https://x/openapi.json"}}`
	c := NewCompiler(zap.NewNop(), nil)
	_, err := c.Compile(context.Background(), manifest)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidSchema, types.GetErrorCode(err))
}

func TestCompiler_InvalidDocuments(t *testing.T) {
	t.Parallel()

	c := NewCompiler(zap.NewNop(), nil)
	for _, raw := range []string{
		"",
		"{not json or yaml: [",
		`{"foo": "bar"}`,
		`{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": {}}`, // no servers
	} {
		_, err := c.Compile(context.Background(), raw)
		require.Error(t, err, "input %q", raw)
		assert.Equal(t, types.ErrInvalidSchema, types.GetErrorCode(err), "input %q", raw)
	}
}

func TestCompiler_DocumentDescription(t *testing.T) {
	t.Parallel()

	doc := `{"openapi":"3.0.0","info":{"title":"Petstore","description":"pets as a service","version":"1.0.0"},` +
		`"servers":[{"url":"https://petstore.example.com"}],` +
		`"paths":{"/pets":{"get":{"operationId":"listPets","summary":"list"}}}}`

	c := NewCompiler(zap.NewNop(), nil)
	result, err := c.Compile(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "pets as a service", result.Description)

	// No description in the document leaves the field empty.
	result, err = c.Compile(context.Background(), petstoreJSON)
	require.NoError(t, err)
	assert.Empty(t, result.Description)
}

func TestValidType(t *testing.T) {
	t.Parallel()

	for _, v := range []string{TypeOpenAPI, TypeSwagger, TypeOpenAIPlugin} {
		assert.True(t, ValidType(v), v)
	}
	for _, v := range []string{"", "graphql", "OPENAPI", "openapi3"} {
		assert.False(t, ValidType(v), v)
	}
}
