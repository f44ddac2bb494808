// 包 分析服务的 Kafka 事件发布实现
package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
	"github.com/wyfcoding/portfoliorisk/pkg/mq"
)

// 事件主题
const (
	TopicAnalyticsComputed    = "analytics.computed"
	TopicPortfolioInvalidated = "analytics.invalidated"
)

const publishTimeout = 5 * time.Second

// KafkaEventPublisher 基于 Kafka 的事件发布实现
// 消息键为组合 ID，同一组合的事件保持分区有序
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

var _ domain.EventPublisher = (*KafkaEventPublisher)(nil)

// NewKafkaEventPublisher 创建 Kafka 事件发布者
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishAnalyticsComputed 发布分析计算完成事件
func (p *KafkaEventPublisher) PublishAnalyticsComputed(event domain.AnalyticsComputedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.producer.SendMessage(ctx, TopicAnalyticsComputed, event.PortfolioID, event)
}

// PublishPortfolioInvalidated 发布组合缓存失效事件
func (p *KafkaEventPublisher) PublishPortfolioInvalidated(event domain.PortfolioInvalidatedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.producer.SendMessage(ctx, TopicPortfolioInvalidated, event.PortfolioID, event)
}
