// Package messaging 期权事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/optionsdesk/internal/option/domain"
	"github.com/wyfcoding/optionsdesk/pkg/mq"
)

// 事件主题名（不含前缀）
const (
	TopicOptionMinted    = "option.minted"
	TopicOptionExercised = "option.exercised"
)

// kafkaPublisher 以合约 ID 为消息 key，同一合约的事件保持有序
type kafkaPublisher struct {
	producer mq.Producer
	prefix   string
}

// NewEventPublisher 创建事件发布者，prefix 为主题前缀
func NewEventPublisher(producer mq.Producer, prefix string) domain.EventPublisher {
	return &kafkaPublisher{producer: producer, prefix: prefix}
}

func (p *kafkaPublisher) PublishOptionMinted(ctx context.Context, event domain.OptionMintedEvent) error {
	return p.producer.SendMessage(ctx, mq.Topic(p.prefix, TopicOptionMinted), event.OptionID, event)
}

func (p *kafkaPublisher) PublishOptionExercised(ctx context.Context, event domain.OptionExercisedEvent) error {
	return p.producer.SendMessage(ctx, mq.Topic(p.prefix, TopicOptionExercised), event.Effect.OptionID, event)
}
