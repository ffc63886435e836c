package provider

import (
	"fmt"

	"github.com/BaSui01/toolhub/types"
)

// AuthType is the closed set of supported provider authentication modes.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
)

// ParseAuthType validates a raw auth_type value against the closed enum.
func ParseAuthType(raw string) (AuthType, error) {
	switch AuthType(raw) {
	case AuthNone:
		return AuthNone, nil
	case AuthAPIKey:
		return AuthAPIKey, nil
	default:
		return "", types.NewValidationError(fmt.Sprintf("invalid auth_type %q, expected one of none, api_key", raw))
	}
}

// Credential field input kinds.
const (
	FieldSecretInput = "secret-input"
	FieldTextInput   = "text-input"
	FieldSelect      = "select"
)

// FieldOption is one choice of a select field.
type FieldOption struct {
	Value string         `json:"value"`
	Label types.I18nText `json:"label"`
}

// CredentialField describes one field of a provider's credential schema.
type CredentialField struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Required bool           `json:"required"`
	Default  string         `json:"default,omitempty"`
	Options  []FieldOption  `json:"options,omitempty"`
	Label    types.I18nText `json:"label"`
	Help     types.I18nText `json:"help,omitempty"`
}

// CredentialSchema returns the fixed credential schema. The field set is
// constant; which fields are required depends on the chosen auth type.
func CredentialSchema() []CredentialField {
	return []CredentialField{
		{
			Name:     "auth_type",
			Type:     FieldSelect,
			Required: true,
			Default:  string(AuthNone),
			Options: []FieldOption{
				{Value: string(AuthNone), Label: types.NewI18nText("None", "无")},
				{Value: string(AuthAPIKey), Label: types.NewI18nText("API Key", "API 密钥")},
			},
			Label: types.NewI18nText("Authorization Type", "鉴权类型"),
			Help:  types.NewI18nText("The authorization type of the API provider", "API 提供者的鉴权类型"),
		},
		{
			Name:    "api_key_header",
			Type:    FieldTextInput,
			Default: "api_key",
			Label:   types.NewI18nText("API Key Header", "API Key 请求头"),
			Help:    types.NewI18nText("The HTTP header name used to carry the API key", "携带 API Key 的 HTTP 请求头名称"),
		},
		{
			Name:    "api_key_value",
			Type:    FieldSecretInput,
			Default: "",
			Label:   types.NewI18nText("API Key Value", "API Key 的值"),
			Help:    types.NewI18nText("The API key issued by the provider", "API 提供者签发的密钥"),
		},
	}
}

// requiredFields names the fields each auth type demands beyond auth_type.
func requiredFields(auth AuthType) []string {
	switch auth {
	case AuthAPIKey:
		return []string{"api_key_header", "api_key_value"}
	default:
		return nil
	}
}

// SecretFieldNames lists the credential fields that hold secrets.
func SecretFieldNames() []string {
	var names []string
	for _, field := range CredentialSchema() {
		if field.Type == FieldSecretInput {
			names = append(names, field.Name)
		}
	}
	return names
}
