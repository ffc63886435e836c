package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/schema"
	"github.com/BaSui01/toolhub/types"
)

// invokeTimeout bounds a single live call against the external endpoint.
const invokeTimeout = 10 * time.Second

// maxResponseBytes caps how much of an external response is read back.
const maxResponseBytes = 1 << 20

// Tool is one operation bundle, optionally bound to a tenant's
// credentials. Unbound tools describe; bound tools invoke.
type Tool struct {
	bundle       schema.Bundle
	providerName string
	authType     AuthType
	tenantID     string
	credentials  map[string]string
	client       *http.Client
	logger       *zap.Logger
}

// Bundle returns the underlying operation bundle.
func (t *Tool) Bundle() schema.Bundle {
	return t.bundle
}

// Schema renders the tool as a callable schema for API consumers.
func (t *Tool) Schema() types.ToolSchema {
	properties := make(map[string]any, len(t.bundle.Parameters))
	var required []string
	for _, p := range t.bundle.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.LLMDescription != "" {
			prop["description"] = p.LLMDescription
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	params, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	return types.ToolSchema{
		Name:        t.bundle.OperationID,
		Description: t.bundle.Summary,
		Parameters:  params,
	}
}

// Invoke performs the live HTTP call described by the bundle. Parameters
// are placed per their declared location; defaults fill the gaps.
func (t *Tool) Invoke(ctx context.Context, params map[string]any) (types.ToolResult, error) {
	start := time.Now()
	result := types.ToolResult{Name: t.bundle.OperationID}

	if t.credentials == nil {
		return result, types.NewValidationError("tool is not bound to credentials")
	}

	req, err := t.buildRequest(ctx, params)
	if err != nil {
		return result, err
	}

	client := t.client
	if client == nil {
		client = &http.Client{Timeout: invokeTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result, fmt.Errorf("call %s %s: %w", t.bundle.Method, t.bundle.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return result, fmt.Errorf("read response: %w", err)
	}

	result.Duration = time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	if json.Valid(body) {
		result.Result = body
	} else {
		result.Result, _ = json.Marshal(string(body))
	}

	t.logger.Debug("tool invoked",
		zap.String("operation_id", t.bundle.OperationID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// ValidateCredentials live-probes the external endpoint with the bound
// credentials. Failures of any kind are caught and returned as an
// {"error": message} payload so a failed probe never aborts the
// surrounding request.
func (t *Tool) ValidateCredentials(ctx context.Context, params map[string]any) map[string]any {
	result, err := t.Invoke(ctx, params)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"result": string(result.Result)}
}

func (t *Tool) buildRequest(ctx context.Context, params map[string]any) (*http.Request, error) {
	path := t.bundle.Path
	query := url.Values{}
	headers := map[string]string{}
	body := map[string]any{}

	for _, p := range t.bundle.Parameters {
		value, ok := params[p.Name]
		if !ok {
			if p.Required && p.Default == nil {
				return nil, types.NewValidationError(fmt.Sprintf("parameter %q is required", p.Name))
			}
			if p.Default == nil {
				continue
			}
			value = p.Default
		}
		switch p.In {
		case "path":
			path = strings.ReplaceAll(path, "{"+p.Name+"}", fmt.Sprint(value))
		case "query":
			query.Set(p.Name, fmt.Sprint(value))
		case "header":
			headers[p.Name] = fmt.Sprint(value)
		case "body":
			body[p.Name] = value
		}
	}

	endpoint := strings.TrimSuffix(t.bundle.ServerURL, "/") + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if len(body) > 0 {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, t.bundle.Method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	if t.authType == AuthAPIKey {
		header := t.credentials["api_key_header"]
		if header == "" {
			header = "api_key"
		}
		req.Header.Set(header, t.credentials["api_key_value"])
	}
	return req, nil
}
