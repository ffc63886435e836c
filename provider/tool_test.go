package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/schema"
	"github.com/BaSui01/toolhub/store"
)

func boundTool(t *testing.T, serverURL string, bundle schema.Bundle, auth AuthType, credentials map[string]string) *Tool {
	t.Helper()
	bundle.ServerURL = serverURL
	c := FromRecord(&store.ProviderRecord{ID: "p1", TenantID: "tenant-1", Name: "test"}, auth, zap.NewNop())
	c.LoadBundles([]schema.Bundle{bundle})

	tool, err := c.GetTool(bundle.OperationID)
	require.NoError(t, err)
	return c.BindRuntime(tool, "tenant-1", credentials)
}

func TestTool_Invoke_ParameterPlacement(t *testing.T) {
	t.Parallel()

	var captured *http.Request
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		capturedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bundle := schema.Bundle{
		OperationID: "updatePet",
		Method:      "POST",
		Path:        "/pets/{petId}",
		Parameters: []schema.Parameter{
			{Name: "petId", In: "path", Required: true, Type: "string"},
			{Name: "verbose", In: "query", Type: "boolean"},
			{Name: "X-Trace", In: "header", Type: "string"},
			{Name: "name", In: "body", Required: true, Type: "string"},
		},
	}
	tool := boundTool(t, srv.URL, bundle, AuthAPIKey, map[string]string{
		"auth_type":      "api_key",
		"api_key_header": "X-API-Key",
		"api_key_value":  "secret-token",
	})

	result, err := tool.Invoke(context.Background(), map[string]any{
		"petId":   "42",
		"verbose": true,
		"X-Trace": "trace-1",
		"name":    "Rex",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result.Result))
	assert.False(t, result.IsError())

	require.NotNil(t, captured)
	assert.Equal(t, "/pets/42", captured.URL.Path)
	assert.Equal(t, "true", captured.URL.Query().Get("verbose"))
	assert.Equal(t, "trace-1", captured.Header.Get("X-Trace"))
	assert.Equal(t, "secret-token", captured.Header.Get("X-API-Key"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(capturedBody, &body))
	assert.Equal(t, "Rex", body["name"])
}

func TestTool_Invoke_DefaultsAndMissingRequired(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	bundle := schema.Bundle{
		OperationID: "listPets",
		Method:      "GET",
		Path:        "/pets",
		Parameters: []schema.Parameter{
			{Name: "limit", In: "query", Type: "integer", Default: "20"},
			{Name: "owner", In: "query", Type: "string", Required: true},
		},
	}
	tool := boundTool(t, srv.URL, bundle, AuthNone, map[string]string{"auth_type": "none"})

	// Missing required parameter fails before any network call.
	_, err := tool.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)

	result, err := tool.Invoke(context.Background(), map[string]any{"owner": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(result.Result))
}

func TestTool_Invoke_Unbound(t *testing.T) {
	t.Parallel()

	c := FromRecord(&store.ProviderRecord{ID: "p1", Name: "test"}, AuthNone, zap.NewNop())
	c.LoadBundles([]schema.Bundle{{OperationID: "op", Method: "GET", Path: "/", ServerURL: "https://x"}})

	tool, err := c.GetTool("op")
	require.NoError(t, err)

	_, err = tool.Invoke(context.Background(), nil)
	require.Error(t, err)
}

func TestTool_ValidateCredentials_ErrorPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	bundle := schema.Bundle{OperationID: "probe", Method: "GET", Path: "/probe"}
	tool := boundTool(t, srv.URL, bundle, AuthAPIKey, map[string]string{
		"auth_type":     "api_key",
		"api_key_value": "wrong",
	})

	payload := tool.ValidateCredentials(context.Background(), nil)
	errMsg, ok := payload["error"].(string)
	require.True(t, ok, "live failures must come back as an error payload, got %v", payload)
	assert.Contains(t, errMsg, "401")
}

func TestTool_ValidateCredentials_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	bundle := schema.Bundle{OperationID: "probe", Method: "GET", Path: "/probe"}
	tool := boundTool(t, srv.URL, bundle, AuthNone, map[string]string{"auth_type": "none"})

	payload := tool.ValidateCredentials(context.Background(), nil)
	assert.NotContains(t, payload, "error")
	assert.JSONEq(t, `{"status":"ok"}`, payload["result"].(string))
}

func TestTool_Invoke_UnreachableEndpoint(t *testing.T) {
	t.Parallel()

	bundle := schema.Bundle{OperationID: "probe", Method: "GET", Path: "/probe"}
	tool := boundTool(t, "http://127.0.0.1:1", bundle, AuthNone, map[string]string{"auth_type": "none"})

	payload := tool.ValidateCredentials(context.Background(), nil)
	assert.Contains(t, payload, "error")
}

func TestTool_Schema(t *testing.T) {
	t.Parallel()

	bundle := schema.Bundle{
		OperationID: "listPets",
		Summary:     "List all pets",
		Method:      "GET",
		Path:        "/pets",
		ServerURL:   "https://x",
		Parameters: []schema.Parameter{
			{Name: "limit", In: "query", Type: "integer", Required: true, LLMDescription: "page size"},
		},
	}
	c := FromRecord(&store.ProviderRecord{ID: "p1", Name: "test"}, AuthNone, zap.NewNop())
	c.LoadBundles([]schema.Bundle{bundle})

	tool, err := c.GetTool("listPets")
	require.NoError(t, err)

	ts := tool.Schema()
	assert.Equal(t, "listPets", ts.Name)
	assert.Equal(t, "List all pets", ts.Description)

	var params struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(ts.Parameters, &params))
	assert.Equal(t, "object", params.Type)
	assert.Equal(t, []string{"limit"}, params.Required)
	assert.Equal(t, "page size", params.Properties["limit"]["description"])
}
