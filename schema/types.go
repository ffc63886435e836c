package schema

// Schema type names recognized by the compiler.
const (
	TypeOpenAPI      = "openapi"
	TypeSwagger      = "swagger"
	TypeOpenAIPlugin = "openai_plugin"
)

// ValidType reports whether v names one of the schema types the
// compiler can produce.
func ValidType(v string) bool {
	switch v {
	case TypeOpenAPI, TypeSwagger, TypeOpenAIPlugin:
		return true
	}
	return false
}

// Document represents a parsed OpenAPI 3.x document.
type Document struct {
	OpenAPI string              `json:"openapi"`
	Info    Info                `json:"info"`
	Servers []Server            `json:"servers,omitempty"`
	Paths   map[string]PathItem `json:"paths"`
}

// Info contains API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents an API server.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem represents operations on a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	OperationID string       `json:"operationId,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Parameters  []SpecParam  `json:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
	Responses   Responses    `json:"responses,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// SpecParam represents an operation parameter as written in the document.
type SpecParam struct {
	Name        string      `json:"name"`
	In          string      `json:"in"` // query, path, header, cookie
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Schema      *JSONSchema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *JSONSchema `json:"schema,omitempty"`
}

// Responses represents operation responses.
type Responses map[string]ResponseObj

// ResponseObj represents a response.
type ResponseObj struct {
	Description string               `json:"description,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// JSONSchema represents a JSON Schema.
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	Enum        []any                 `json:"enum,omitempty"`
	Default     any                   `json:"default,omitempty"`
}

// Parameter is a flattened, invocation-ready parameter of a Bundle.
// Body properties are flattened alongside path/query/header parameters
// with In set to "body".
type Parameter struct {
	Name           string `json:"name"`
	LLMDescription string `json:"llm_description,omitempty"`
	Required       bool   `json:"required"`
	Type           string `json:"type,omitempty"`
	Default        any    `json:"default,omitempty"`
	In             string `json:"in"`
}

// Bundle represents one invokable operation compiled from a document.
// Bundles keep the order of appearance in the source document: paths in
// document order, methods in GET/POST/PUT/DELETE/PATCH order within a path.
type Bundle struct {
	ServerURL   string       `json:"server_url"`
	Method      string       `json:"method"`
	Path        string       `json:"path"`
	Summary     string       `json:"summary,omitempty"`
	OperationID string       `json:"operation_id"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	OpenAPI     *Operation   `json:"openapi,omitempty"`
	RequestBody *RequestBody `json:"request_body,omitempty"`
}

// CompileResult is the outcome of compiling a raw schema document.
// Description carries the document's info.description so callers can
// default a provider description from the schema itself.
type CompileResult struct {
	Bundles     []Bundle `json:"bundles"`
	SchemaType  string   `json:"schema_type"`
	Description string   `json:"description,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}
