package store

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/toolhub/internal/database"
)

// LabelStore 标签存储。标签写入发生在主事务提交之后，属于尽力而为：
// 失败只记录日志，绝不回滚主操作。
type LabelStore struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewLabelStore 创建标签存储
func NewLabelStore(pool *database.PoolManager, logger *zap.Logger) *LabelStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelStore{
		db:     pool.DB(),
		pool:   pool,
		logger: logger.With(zap.String("component", "label_store")),
	}
}

// ReplaceLabels 全量替换一个提供者的标签集合
func (s *LabelStore) ReplaceLabels(ctx context.Context, providerID string, labels []string) error {
	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		if err := tx.Where("provider_id = ?", providerID).Delete(&LabelBinding{}).Error; err != nil {
			return err
		}
		for _, label := range labels {
			if label == "" {
				continue
			}
			binding := LabelBinding{ProviderID: providerID, Label: label}
			if err := tx.Create(&binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLabels 批量读取标签，返回 providerID → 有序标签列表
func (s *LabelStore) GetLabels(ctx context.Context, providerIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(providerIDs))
	if len(providerIDs) == 0 {
		return result, nil
	}

	var bindings []LabelBinding
	err := s.db.WithContext(ctx).
		Where("provider_id IN ?", providerIDs).
		Find(&bindings).Error
	if err != nil {
		return nil, err
	}

	for _, b := range bindings {
		result[b.ProviderID] = append(result[b.ProviderID], b.Label)
	}
	for id := range result {
		sort.Strings(result[id])
	}
	return result, nil
}
