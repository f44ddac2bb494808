package domain

// EventPublisher 事件发布者接口
// 发布失败只记录日志，不影响主流程
type EventPublisher interface {
	// PublishAnalyticsComputed 发布分析计算完成事件
	PublishAnalyticsComputed(event AnalyticsComputedEvent) error

	// PublishPortfolioInvalidated 发布组合缓存失效事件
	PublishPortfolioInvalidated(event PortfolioInvalidatedEvent) error
}
