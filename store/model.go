// Package store persists provider records and labels with GORM.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProviderRecord 已注册的 API 工具提供者。Credentials 为 JSON 序列化的
// 凭据字典，其中密钥字段已由 vault 加密。
type ProviderRecord struct {
	ID               string    `gorm:"size:36;primaryKey" json:"id"`
	TenantID         string    `gorm:"size:36;not null;uniqueIndex:idx_provider_tenant_name;index:idx_provider_tenant" json:"tenant_id"`
	Name             string    `gorm:"size:255;not null;uniqueIndex:idx_provider_tenant_name" json:"name"`
	Icon             string    `gorm:"size:2048" json:"icon"`                      // 图标（emoji / URL / JSON 元数据）
	Description      string    `gorm:"type:text" json:"description"`               // 描述
	SchemaType       string    `gorm:"size:40;not null" json:"schema_type"`        // openapi / swagger / openai_plugin
	Schema           string    `gorm:"type:text;not null" json:"schema"`           // 原始 schema 文本
	PrivacyPolicy    string    `gorm:"size:2048" json:"privacy_policy"`            // 隐私政策 URL
	CustomDisclaimer string    `gorm:"type:text" json:"custom_disclaimer"`         // 自定义免责声明
	Credentials      string    `gorm:"type:text" json:"-"`                         // 加密后的凭据 JSON，永不序列化给调用方
	UserID           string    `gorm:"size:36" json:"user_id"`                     // 创建者
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ProviderRecord) TableName() string {
	return "toolhub_providers"
}

// CredentialsMap 反序列化存储的凭据字典
func (r *ProviderRecord) CredentialsMap() (map[string]string, error) {
	if r.Credentials == "" {
		return map[string]string{}, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(r.Credentials), &values); err != nil {
		return nil, fmt.Errorf("unmarshal stored credentials: %w", err)
	}
	return values, nil
}

// SetCredentials 序列化并写入凭据字典
func (r *ProviderRecord) SetCredentials(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	r.Credentials = string(data)
	return nil
}

// LabelBinding 提供者与标签的多对多绑定
type LabelBinding struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ProviderID string `gorm:"size:36;not null;uniqueIndex:idx_label_provider_label;index:idx_label_provider" json:"provider_id"`
	Label      string `gorm:"size:40;not null;uniqueIndex:idx_label_provider_label" json:"label"`
}

// TableName 指定表名
func (LabelBinding) TableName() string {
	return "toolhub_labels"
}

// AutoMigrate 迁移本包的全部表。用于 SQLite 开发模式与测试；
// 生产环境使用 internal/migration 的版本化迁移。
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ProviderRecord{}, &LabelBinding{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
