package application

import (
	"time"

	marketdomain "github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
)

// 铸造默认参数
const (
	DefaultStrikePrice = "0.40"
	DefaultPremium     = "0.1"
	DefaultAsset       = "ADA"
	DefaultOptionType  = domain.OptionTypeCall
	DefaultExpiry      = 24 * time.Hour
)

// MintCommand 铸造请求，空字段使用默认值
type MintCommand struct {
	// 为空时使用钱包当前地址
	Owner           string
	OptionType      string
	StrikePrice     string
	Premium         string
	UnderlyingAsset string
	ExpiryAt        *time.Time
}

// MintResult 铸造结果
type MintResult struct {
	Contract domain.OptionContract `json:"contract"`
	Metadata domain.Metadata       `json:"metadata"`
	TxID     string                `json:"tx_id"`
}

// OptionView 合约与当前估值
type OptionView struct {
	Contract  domain.OptionContract `json:"contract"`
	Valuation domain.Valuation      `json:"valuation"`
	Quote     marketdomain.Quote    `json:"quote"`
}

// ExerciseResult 行权结果
type ExerciseResult struct {
	Contract domain.OptionContract   `json:"contract"`
	Effect   domain.SettlementEffect `json:"effect"`
	TxID     string                  `json:"tx_id"`
	Quote    marketdomain.Quote      `json:"quote"`
}

// PortfolioView 持仓视图
type PortfolioView struct {
	Owner     string                  `json:"owner"`
	Positions []domain.Position       `json:"positions"`
	Summary   domain.PortfolioSummary `json:"summary"`
	AsOf      time.Time               `json:"as_of"`
}

// WalletInfo 钱包概要
type WalletInfo struct {
	Address      string `json:"address"`
	ShortAddress string `json:"short_address"`
	Balance      string `json:"balance"`
}
