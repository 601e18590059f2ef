package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	marketdomain "github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrUserRejected = errors.New("user rejected the request")
	ErrNetwork      = errors.New("wallet network error")
)

type IntentKind string

const (
	IntentMint     IntentKind = "MINT"
	IntentSettle   IntentKind = "SETTLE"
	IntentTransfer IntentKind = "TRANSFER"
)

// MetadataLabel CIP-25 NFT 元数据标签
const MetadataLabel = "721"

// Intent 待钱包签名并提交的链上意图
type Intent struct {
	Kind      IntentKind      `json:"kind"`
	OptionID  string          `json:"option_id"`
	AssetName string          `json:"asset_name,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Label     string          `json:"label,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
	Memo      string          `json:"memo,omitempty"`
}

// Wallet 钱包协作方
// 估值模块从不直接调用它，只产出可交给它的意图
type Wallet interface {
	GetAddress(ctx context.Context) (string, error)
	// GetBalance 余额（ADA）
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	// SignAndSubmit 签名并提交，返回交易哈希
	SignAndSubmit(ctx context.Context, intent Intent) (string, error)
}

// PriceFeed 行情协作方，失败时由实现方负责兜底报价
type PriceFeed interface {
	Latest(ctx context.Context, asset string) (marketdomain.Quote, error)
}

// OptionRepository 合约仓储
type OptionRepository interface {
	// Save 保存新铸造的合约；已存在时只更新铸造交易号
	Save(ctx context.Context, c *OptionContract) error
	// Get 不存在时返回 ErrOptionNotFound
	Get(ctx context.Context, id string) (*OptionContract, error)
	ListByOwner(ctx context.Context, owner string) ([]*OptionContract, error)
	// ClaimExercise 条件更新 exercised=true，要求合约仍未行权且持有人仍为 owner
	// 已行权返回 ErrAlreadyExercised，持有人已变更返回 ErrOptionChanged
	ClaimExercise(ctx context.Context, id, owner string, at time.Time) error
	// ReleaseExercise 结算提交失败时撤销 ClaimExercise
	ReleaseExercise(ctx context.Context, id string, at time.Time) error
}

// ListingCloser 行权后撤下合约的在售挂单
type ListingCloser interface {
	CloseListings(ctx context.Context, optionID string) error
}

// Clock 当前时间来源
type Clock func() time.Time

// ShortenAddress 缩写链上地址用于展示：前 10 位...后 8 位
func ShortenAddress(addr string) string {
	if len(addr) <= 18 {
		return addr
	}
	return addr[:10] + "..." + addr[len(addr)-8:]
}

// WalletErrorReason 钱包错误分类，用作指标标签
func WalletErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrUserRejected):
		return "user_rejected"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
