// Package messaging 挂单事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/optionsdesk/internal/marketplace/domain"
	"github.com/wyfcoding/optionsdesk/pkg/mq"
)

// TopicListingFilled 成交事件主题名（不含前缀）
const TopicListingFilled = "listing.filled"

type kafkaPublisher struct {
	producer mq.Producer
	prefix   string
}

// NewEventPublisher 创建事件发布者，消息 key 为合约 ID，与期权事件同分区有序
func NewEventPublisher(producer mq.Producer, prefix string) domain.EventPublisher {
	return &kafkaPublisher{producer: producer, prefix: prefix}
}

func (p *kafkaPublisher) PublishListingFilled(ctx context.Context, event domain.ListingFilledEvent) error {
	return p.producer.SendMessage(ctx, mq.Topic(p.prefix, TopicListingFilled), event.OptionID, event)
}
