package domain

import "github.com/shopspring/decimal"

// Position 持仓：合约及其当前估值
type Position struct {
	Contract  OptionContract `json:"contract"`
	Valuation Valuation      `json:"valuation"`
}

// PortfolioSummary 持仓汇总
type PortfolioSummary struct {
	Total      int `json:"total"`
	InTheMoney int `json:"in_the_money"`
	Expired    int `json:"expired"`
	// 包含已过期持仓的盈亏
	TotalProfitLoss decimal.Decimal `json:"total_profit_loss"`
}

// Summarize 汇总持仓；价内计数只统计未过期合约
func Summarize(positions []Position) PortfolioSummary {
	s := PortfolioSummary{Total: len(positions), TotalProfitLoss: decimal.Zero}
	for _, p := range positions {
		switch p.Valuation.Status {
		case StatusExpired:
			s.Expired++
		case StatusInTheMoney:
			s.InTheMoney++
		}
		s.TotalProfitLoss = s.TotalProfitLoss.Add(p.Valuation.ProfitLoss)
	}
	return s
}
