package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementEffect 行权产生的结算效果
// 领域层只计算效果，实际资金/资产划转由钱包或账本协作方完成
type SettlementEffect struct {
	OptionID        string          `json:"option_id"`
	AssetName       string          `json:"asset_name"`
	Holder          string          `json:"holder"`
	OptionType      OptionType      `json:"option_type"`
	UnderlyingAsset string          `json:"underlying_asset"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	SpotPrice       decimal.Decimal `json:"spot_price"`
	IntrinsicValue  decimal.Decimal `json:"intrinsic_value"`
	Premium         decimal.Decimal `json:"premium"`
	ProfitLoss      decimal.Decimal `json:"profit_loss"`
	ExercisedAt     time.Time       `json:"exercised_at"`
}

// Exercise 行权
// 已行权返回 ErrAlreadyExercised；过期或价外返回 ErrNotExercisable。
// 成功时返回结算效果与 Exercised=true 的新合约，接收者本身不变
func (c OptionContract) Exercise(spot decimal.Decimal, now time.Time) (SettlementEffect, OptionContract, error) {
	if c.Exercised {
		return SettlementEffect{}, c, fmt.Errorf("%w: %s", ErrAlreadyExercised, c.ID)
	}
	if !c.IsExercisable(spot, now) {
		reason := "out of the money"
		if c.IsExpired(now) {
			reason = "expired"
		}
		return SettlementEffect{}, c, fmt.Errorf("%w: %s is %s", ErrNotExercisable, c.ID, reason)
	}

	effect := SettlementEffect{
		OptionID:        c.ID,
		AssetName:       c.AssetName,
		Holder:          c.Owner,
		OptionType:      c.OptionType,
		UnderlyingAsset: c.UnderlyingAsset,
		StrikePrice:     c.StrikePrice,
		SpotPrice:       spot,
		IntrinsicValue:  c.IntrinsicValue(spot),
		Premium:         c.Premium,
		ProfitLoss:      c.ProfitLoss(spot),
		ExercisedAt:     now,
	}

	exercised := c
	exercised.Exercised = true
	return effect, exercised, nil
}

// Intent 转换为提交给钱包的结算意图
func (e SettlementEffect) Intent() Intent {
	return Intent{
		Kind:      IntentSettle,
		OptionID:  e.OptionID,
		AssetName: e.AssetName,
		To:        e.Holder,
		Amount:    e.IntrinsicValue,
		Memo:      fmt.Sprintf("exercise %s %s @ %s, P/L %s", e.OptionType, e.UnderlyingAsset, e.SpotPrice, e.ProfitLoss),
	}
}
