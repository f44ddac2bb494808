package domain

import "time"

// AnalyticsComputedEvent 分析计算完成事件
type AnalyticsComputedEvent struct {
	PortfolioID string
	Operation   string
	Fingerprint string
	CacheHit    bool
	DurationMs  int64
	OccurredOn  time.Time
}

// PortfolioInvalidatedEvent 组合缓存失效事件
// 组合快照保存、更新或删除后发布
type PortfolioInvalidatedEvent struct {
	PortfolioID string
	Reason      string
	OccurredOn  time.Time
}
