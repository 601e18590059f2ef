// Package domain 期权 NFT 领域模型
// 合约一经铸造即不可变，唯一的状态迁移是 exercised: false -> true，
// 该迁移通过返回新的合约值完成（写时复制），领域层不持有任何可变状态
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidContract   = errors.New("invalid option contract")
	ErrNotExercisable    = errors.New("option not exercisable")
	ErrAlreadyExercised  = errors.New("option already exercised")
	ErrOptionNotFound    = errors.New("option not found")
	ErrOptionChanged     = errors.New("option changed concurrently")
	ErrUnreliableQuote   = errors.New("quote not reliable enough to settle")
	ErrInvalidOptionType = errors.New("invalid option type")
)

// AssetNamePrefix 铸造资产名前缀，后接创建时间毫秒时间戳
const AssetNamePrefix = "CardanoOption"

type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// ParseOptionType 解析期权类型，大小写不敏感
func ParseOptionType(s string) (OptionType, error) {
	t := OptionType(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t OptionType) Validate() error {
	if t != OptionTypeCall && t != OptionTypePut {
		return fmt.Errorf("%w: %q", ErrInvalidOptionType, string(t))
	}
	return nil
}

// OptionContract 期权合约（NFT）
type OptionContract struct {
	ID              string          `json:"id"`
	AssetName       string          `json:"asset_name"`
	Owner           string          `json:"owner"`
	OptionType      OptionType      `json:"option_type"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	Premium         decimal.Decimal `json:"premium"`
	UnderlyingAsset string          `json:"underlying_asset"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiryAt        time.Time       `json:"expiry_at"`
	Exercised       bool            `json:"exercised"`
	MintTxID        string          `json:"mint_tx_id"`
}

// ContractTerms 铸造参数
type ContractTerms struct {
	OptionType      OptionType
	StrikePrice     decimal.Decimal
	Premium         decimal.Decimal
	UnderlyingAsset string
	CreatedAt       time.Time
	ExpiryAt        time.Time
}

// NewOptionContract 校验条款并创建合约
func NewOptionContract(id, owner string, terms ContractTerms) (OptionContract, error) {
	if err := terms.Validate(); err != nil {
		return OptionContract{}, err
	}
	return OptionContract{
		ID:              id,
		AssetName:       AssetName(terms.CreatedAt),
		Owner:           owner,
		OptionType:      terms.OptionType,
		StrikePrice:     terms.StrikePrice,
		Premium:         terms.Premium,
		UnderlyingAsset: strings.ToUpper(strings.TrimSpace(terms.UnderlyingAsset)),
		CreatedAt:       terms.CreatedAt,
		ExpiryAt:        terms.ExpiryAt,
	}, nil
}

// Validate 校验合约条款
func (t ContractTerms) Validate() error {
	if err := t.OptionType.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContract, err)
	}
	if !t.StrikePrice.IsPositive() {
		return fmt.Errorf("%w: strike price must be positive, got %s", ErrInvalidContract, t.StrikePrice)
	}
	if t.Premium.IsNegative() {
		return fmt.Errorf("%w: premium must not be negative, got %s", ErrInvalidContract, t.Premium)
	}
	if strings.TrimSpace(t.UnderlyingAsset) == "" {
		return fmt.Errorf("%w: underlying asset is required", ErrInvalidContract)
	}
	if !t.ExpiryAt.After(t.CreatedAt) {
		return fmt.Errorf("%w: expiry %s must be after creation %s", ErrInvalidContract,
			t.ExpiryAt.Format(time.RFC3339), t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// AssetName 根据创建时间生成链上资产名
func AssetName(createdAt time.Time) string {
	return fmt.Sprintf("%s%d", AssetNamePrefix, createdAt.UnixMilli())
}

// WithOwner 返回更换持有人后的合约副本
func (c OptionContract) WithOwner(owner string) OptionContract {
	c.Owner = owner
	return c
}
