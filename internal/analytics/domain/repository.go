package domain

import "context"

// SnapshotRepository 快照仓储接口
type SnapshotRepository interface {
	SaveRiskSnapshot(ctx context.Context, snapshot *RiskSnapshot) error
	SaveFrontierSnapshot(ctx context.Context, snapshot *FrontierSnapshot) error
	ListRiskByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*RiskSnapshot, error)
	ListFrontierByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*FrontierSnapshot, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) error
}
