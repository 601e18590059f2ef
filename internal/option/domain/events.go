package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OptionMintedEvent 期权铸造事件
type OptionMintedEvent struct {
	OptionID        string          `json:"option_id"`
	AssetName       string          `json:"asset_name"`
	Owner           string          `json:"owner"`
	OptionType      OptionType      `json:"option_type"`
	UnderlyingAsset string          `json:"underlying_asset"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	Premium         decimal.Decimal `json:"premium"`
	ExpiryAt        time.Time       `json:"expiry_at"`
	TxID            string          `json:"tx_id"`
	OccurredOn      time.Time       `json:"occurred_on"`
}

// OptionExercisedEvent 期权行权事件
type OptionExercisedEvent struct {
	Effect     SettlementEffect `json:"effect"`
	TxID       string           `json:"tx_id"`
	OccurredOn time.Time        `json:"occurred_on"`
}

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishOptionMinted 发布期权铸造事件
	PublishOptionMinted(ctx context.Context, event OptionMintedEvent) error

	// PublishOptionExercised 发布期权行权事件
	PublishOptionExercised(ctx context.Context, event OptionExercisedEvent) error
}
