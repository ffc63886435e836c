package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/provider"
	"github.com/BaSui01/toolhub/registry"
	"github.com/BaSui01/toolhub/types"
)

// ProviderHandler 处理 API 工具提供者管理的 CRUD 操作
type ProviderHandler struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewProviderHandler 创建 ProviderHandler
func NewProviderHandler(reg *registry.Registry, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{registry: reg, logger: logger}
}

// requireTenant 从请求上下文提取租户标识
func requireTenant(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	tenantID, ok := types.TenantID(r.Context())
	if !ok || tenantID == "" {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "missing tenant identity", logger)
		return "", false
	}
	return tenantID, true
}

// extractProviderName 从路由通配符提取提供者名称
func extractProviderName(r *http.Request) (string, bool) {
	name := r.PathValue("name")
	if name == "" {
		return "", false
	}
	return name, true
}

// createProviderRequest 创建/更新提供者的请求体
type createProviderRequest struct {
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

func (req createProviderRequest) toUpsert() registry.UpsertRequest {
	return registry.UpsertRequest{
		Name:             req.Name,
		Icon:             req.Icon,
		Description:      req.Description,
		SchemaType:       req.SchemaType,
		Schema:           req.Schema,
		PrivacyPolicy:    req.PrivacyPolicy,
		CustomDisclaimer: req.CustomDisclaimer,
		Credentials:      req.Credentials,
		Labels:           req.Labels,
	}
}

// HandleCreate POST /api/v1/providers
func (h *ProviderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	userID, _ := types.UserID(r.Context())

	var req createProviderRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	rec, err := h.registry.Create(r.Context(), tenantID, userID, req.toUpsert())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      map[string]string{"id": rec.ID, "name": rec.Name},
		Timestamp: rec.CreatedAt,
	})
}

// HandleUpdate PUT /api/v1/providers/{name}
func (h *ProviderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	name, ok := extractProviderName(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing provider name", h.logger)
		return
	}

	var req createProviderRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	rec, err := h.registry.Update(r.Context(), tenantID, name, req.toUpsert())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"id": rec.ID, "name": rec.Name})
}

// HandleDelete DELETE /api/v1/providers/{name}
func (h *ProviderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	name, ok := extractProviderName(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing provider name", h.logger)
		return
	}

	if err := h.registry.Delete(r.Context(), tenantID, name); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"result": "success"})
}

// HandleList GET /api/v1/providers
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}

	views, err := h.registry.ListProviders(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, views)
}

// HandleGet GET /api/v1/providers/{name}
func (h *ProviderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	name, ok := extractProviderName(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing provider name", h.logger)
		return
	}

	view, err := h.registry.GetProvider(r.Context(), tenantID, name)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, view)
}

// HandleListTools GET /api/v1/providers/{name}/tools
func (h *ProviderHandler) HandleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	name, ok := extractProviderName(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing provider name", h.logger)
		return
	}

	tools, err := h.registry.ListTools(r.Context(), tenantID, name)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, tools)
}

// HandleCredentialSchema GET /api/v1/providers/credentials-schema
func (h *ProviderHandler) HandleCredentialSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	WriteSuccess(w, provider.CredentialSchema())
}

// parseSchemaRequest 解析 Schema 的请求体
type parseSchemaRequest struct {
	Schema string `json:"schema"`
}

// HandleParseSchema POST /api/v1/providers/parse
// 只解析不落库：返回 schema 类型、操作列表、凭据表单结构与告警
func (h *ProviderHandler) HandleParseSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	if _, ok := requireTenant(w, r, h.logger); !ok {
		return
	}

	var req parseSchemaRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.registry.ParseSchema(r.Context(), req.Schema)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// testProviderRequest 凭据测试预览的请求体
type testProviderRequest struct {
	ProviderName string            `json:"provider_name"`
	ToolName     string            `json:"tool_name"`
	Credentials  map[string]string `json:"credentials"`
	Parameters   map[string]any    `json:"parameters"`
	SchemaType   string            `json:"schema_type"`
	Schema       string            `json:"schema"`
}

// HandleTest POST /api/v1/providers/test
func (h *ProviderHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}

	var req testProviderRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	payload, err := h.registry.TestPreview(r.Context(), tenantID, registry.PreviewRequest{
		ProviderName: req.ProviderName,
		OperationID:  req.ToolName,
		Credentials:  req.Credentials,
		Parameters:   req.Parameters,
		SchemaType:   req.SchemaType,
		Schema:       req.Schema,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, payload)
}

// HandleFetchSchema GET /api/v1/providers/remote-schema?url=...
func (h *ProviderHandler) HandleFetchSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", h.logger)
		return
	}
	tenantID, ok := requireTenant(w, r, h.logger)
	if !ok {
		return
	}
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing url parameter", h.logger)
		return
	}

	remote, err := h.registry.FetchRemoteSchema(r.Context(), tenantID, url)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, remote)
}
