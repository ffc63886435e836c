package types

import (
	"encoding/json"
	"time"
)

// ToolSchema defines a tool's callable interface.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Labels      []string        `json:"labels,omitempty"`
}

// ToolResult represents the result of a tool invocation.
type ToolResult struct {
	Name     string          `json:"name"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// IsError returns true if the tool invocation failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}
