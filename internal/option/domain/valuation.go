package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusExpired    Status = "EXPIRED"
	StatusInTheMoney Status = "IN_THE_MONEY"
	StatusOutOfMoney Status = "OUT_OF_MONEY"
)

// expiresSoonHours 距到期不足该小时数时提示即将到期
const expiresSoonHours = 6

// IsExpired now 严格晚于到期时间才算过期，恰在到期时刻仍有效
func (c OptionContract) IsExpired(now time.Time) bool {
	return now.After(c.ExpiryAt)
}

// IntrinsicValue 内在价值，恒不小于 0
func (c OptionContract) IntrinsicValue(spot decimal.Decimal) decimal.Decimal {
	var v decimal.Decimal
	if c.OptionType == OptionTypeCall {
		v = spot.Sub(c.StrikePrice)
	} else {
		v = c.StrikePrice.Sub(spot)
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// IsInTheMoney 严格比较，平值（spot == strike）按价外处理
func (c OptionContract) IsInTheMoney(spot decimal.Decimal) bool {
	if c.OptionType == OptionTypeCall {
		return spot.GreaterThan(c.StrikePrice)
	}
	return spot.LessThan(c.StrikePrice)
}

// ProfitLoss 内在价值减去权利金，可为负；不计时间价值
func (c OptionContract) ProfitLoss(spot decimal.Decimal) decimal.Decimal {
	return c.IntrinsicValue(spot).Sub(c.Premium)
}

// Status 到期判断优先于价内/价外
func (c OptionContract) Status(spot decimal.Decimal, now time.Time) Status {
	if c.IsExpired(now) {
		return StatusExpired
	}
	if c.IsInTheMoney(spot) {
		return StatusInTheMoney
	}
	return StatusOutOfMoney
}

// IsExercisable 未过期、价内且未行权
func (c OptionContract) IsExercisable(spot decimal.Decimal, now time.Time) bool {
	return !c.IsExpired(now) && c.IsInTheMoney(spot) && !c.Exercised
}

// TimeToExpiry 剩余时间，已过期返回 0
func (c OptionContract) TimeToExpiry(now time.Time) time.Duration {
	d := c.ExpiryAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// HoursToExpiry 剩余整小时数（向下取整）
func (c OptionContract) HoursToExpiry(now time.Time) int {
	return int(c.TimeToExpiry(now) / time.Hour)
}

// ExpiresSoon 未过期且剩余不足 6 小时
func (c OptionContract) ExpiresSoon(now time.Time) bool {
	return !c.IsExpired(now) && c.HoursToExpiry(now) < expiresSoonHours
}

// FormatCountdown 倒计时展示：超过一天为 "Xd Yh"，否则 "Yh"
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh", hours)
}

// Valuation 某一时刻、某一现价下的合约估值快照
type Valuation struct {
	OptionID       string          `json:"option_id"`
	SpotPrice      decimal.Decimal `json:"spot_price"`
	IntrinsicValue decimal.Decimal `json:"intrinsic_value"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	Status         Status          `json:"status"`
	InTheMoney     bool            `json:"in_the_money"`
	Expired        bool            `json:"expired"`
	Exercisable    bool            `json:"exercisable"`
	HoursToExpiry  int             `json:"hours_to_expiry"`
	ExpiresSoon    bool            `json:"expires_soon"`
	Countdown      string          `json:"countdown"`
	AsOf           time.Time       `json:"as_of"`
}

// Value 汇总全部估值结果
func (c OptionContract) Value(spot decimal.Decimal, now time.Time) Valuation {
	return Valuation{
		OptionID:       c.ID,
		SpotPrice:      spot,
		IntrinsicValue: c.IntrinsicValue(spot),
		ProfitLoss:     c.ProfitLoss(spot),
		Status:         c.Status(spot, now),
		InTheMoney:     c.IsInTheMoney(spot),
		Expired:        c.IsExpired(now),
		Exercisable:    c.IsExercisable(spot, now),
		HoursToExpiry:  c.HoursToExpiry(now),
		ExpiresSoon:    c.ExpiresSoon(now),
		Countdown:      FormatCountdown(c.TimeToExpiry(now)),
		AsOf:           now,
	}
}
