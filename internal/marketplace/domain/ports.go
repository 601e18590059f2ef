package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	optiondomain "github.com/wyfcoding/optionsdesk/internal/option/domain"
)

// ListingRepository 挂单仓储
type ListingRepository interface {
	Save(ctx context.Context, l *Listing) error
	// Get 不存在时返回 ErrListingNotFound
	Get(ctx context.Context, id string) (*Listing, error)
	// FindOpenByOption 合约当前的挂单，无挂单时返回 (nil, nil)
	FindOpenByOption(ctx context.Context, optionID string) (*Listing, error)
	ListOpen(ctx context.Context) ([]*Listing, error)
	// Close 将 OPEN 挂单条件更新为 l.Status，挂单已不是 OPEN 时返回 ErrListingClosed
	Close(ctx context.Context, l *Listing) error
	// Fill 在同一事务中保存成交挂单与换主后的合约
	// 挂单已不是 OPEN 时返回 ErrListingClosed
	// 合约已行权、已过期或不再归卖方所有时返回 ErrNotListable 并回滚
	Fill(ctx context.Context, l *Listing, option *optiondomain.OptionContract) error
}

// ListingFilledEvent 挂单成交事件
type ListingFilledEvent struct {
	ListingID  string          `json:"listing_id"`
	OptionID   string          `json:"option_id"`
	AssetName  string          `json:"asset_name"`
	Seller     string          `json:"seller"`
	Buyer      string          `json:"buyer"`
	AskPremium decimal.Decimal `json:"ask_premium"`
	TxID       string          `json:"tx_id"`
	OccurredOn time.Time       `json:"occurred_on"`
}

// EventPublisher 挂单事件发布
type EventPublisher interface {
	PublishListingFilled(ctx context.Context, event ListingFilledEvent) error
}
