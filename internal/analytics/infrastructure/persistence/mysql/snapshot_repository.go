// 包 分析服务的 MySQL 持久化实现
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
)

// SnapshotRepository 基于 GORM 的快照仓储实现
type SnapshotRepository struct {
	db *gorm.DB
}

var _ domain.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveRiskSnapshot 保存风险指标快照
func (r *SnapshotRepository) SaveRiskSnapshot(ctx context.Context, snapshot *domain.RiskSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("save risk snapshot: %w", err)
	}
	return nil
}

// SaveFrontierSnapshot 保存有效前沿快照
func (r *SnapshotRepository) SaveFrontierSnapshot(ctx context.Context, snapshot *domain.FrontierSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("save frontier snapshot: %w", err)
	}
	return nil
}

// ListRiskByPortfolio 查询组合的风险指标快照，按计算时间倒序
func (r *SnapshotRepository) ListRiskByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*domain.RiskSnapshot, error) {
	var snapshots []*domain.RiskSnapshot
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("computed_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("list risk snapshots: %w", err)
	}
	return snapshots, nil
}

// ListFrontierByPortfolio 查询组合的有效前沿快照，按计算时间倒序
func (r *SnapshotRepository) ListFrontierByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*domain.FrontierSnapshot, error) {
	var snapshots []*domain.FrontierSnapshot
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("computed_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("list frontier snapshots: %w", err)
	}
	return snapshots, nil
}

// DeleteByPortfolio 删除组合的全部快照
func (r *SnapshotRepository) DeleteByPortfolio(ctx context.Context, portfolioID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("portfolio_id = ?", portfolioID).Delete(&domain.RiskSnapshot{}).Error; err != nil {
			return fmt.Errorf("delete risk snapshots: %w", err)
		}
		if err := tx.Where("portfolio_id = ?", portfolioID).Delete(&domain.FrontierSnapshot{}).Error; err != nil {
			return fmt.Errorf("delete frontier snapshots: %w", err)
		}
		return nil
	})
}
