package store

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/toolhub/internal/database"
)

// 仓储层哨兵错误。registry 负责映射为面向调用方的结构化错误。
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// ProviderRepo 提供者记录仓储，所有查询均按租户隔离。
type ProviderRepo struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewProviderRepo 创建仓储
func NewProviderRepo(pool *database.PoolManager, logger *zap.Logger) *ProviderRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderRepo{
		db:     pool.DB(),
		pool:   pool,
		logger: logger.With(zap.String("component", "provider_repo")),
	}
}

// FindByName 按 (tenant, name) 查找
func (r *ProviderRepo) FindByName(ctx context.Context, tenantID, name string) (*ProviderRecord, error) {
	var rec ProviderRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByID 按主键查找（仍校验租户）
func (r *ProviderRepo) FindByID(ctx context.Context, tenantID, id string) (*ProviderRecord, error) {
	var rec ProviderRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 返回租户下全部记录，按创建时间排序
func (r *ProviderRepo) List(ctx context.Context, tenantID string) ([]ProviderRecord, error) {
	var records []ProviderRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create 在单事务中插入记录。并发同名创建由唯一索引兜底，
// 违反时返回 ErrConflict。
func (r *ProviderRepo) Create(ctx context.Context, rec *ProviderRecord) error {
	err := r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil && isDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

// Update 在单事务中保存全部可变字段
func (r *ProviderRepo) Update(ctx context.Context, rec *ProviderRecord) error {
	err := r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Save(rec).Error
	})
	if err != nil && isDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

// Delete 在单事务中删除记录及其标签绑定。记录不存在返回 ErrNotFound。
func (r *ProviderRepo) Delete(ctx context.Context, tenantID, name string) error {
	return r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var rec ProviderRecord
		err := tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("provider_id = ?", rec.ID).Delete(&LabelBinding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&rec).Error
	})
}

// isDuplicateKeyError 识别各方言的唯一约束冲突
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "23505")
}
