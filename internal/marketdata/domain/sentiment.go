package domain

import (
	"github.com/shopspring/decimal"
)

type SentimentKind string

const (
	SentimentBullish SentimentKind = "bullish"
	SentimentBearish SentimentKind = "bearish"
	SentimentNeutral SentimentKind = "neutral"
)

const (
	trendWindow       = 7
	confidenceBase    = 50
	confidenceFloor   = 30
	confidenceCeiling = 95
	strongMoveCap     = 85
)

var strongMoveThreshold = decimal.NewFromInt(5)

// Sentiment 基于价格走势的规则化情绪信号
type Sentiment struct {
	Sentiment  SentimentKind `json:"sentiment"`
	Confidence int           `json:"confidence"`
	Signals    []string      `json:"signals"`
}

// AnalyzeSentiment 根据 24h 涨跌幅和最近 7 个日线点推导市场情绪
// 规则：
// 1. 涨跌幅超过 ±5% 直接定方向，置信度 min(85, 60+|涨跌幅|)
// 2. 点数足够时用窗口首尾差判断趋势，仅在中性时改变方向
// 3. 置信度最终截断到 [30, 95]
func AnalyzeSentiment(change24h decimal.Decimal, history []PricePoint) Sentiment {
	kind := SentimentNeutral
	confidence := confidenceBase
	signals := make([]string, 0, 2)

	switch {
	case change24h.GreaterThan(strongMoveThreshold):
		kind = SentimentBullish
		confidence = strongMoveConfidence(change24h)
		signals = append(signals, "Strong 24h price increase")
	case change24h.LessThan(strongMoveThreshold.Neg()):
		kind = SentimentBearish
		confidence = strongMoveConfidence(change24h)
		signals = append(signals, "Significant 24h price decline")
	}

	if len(history) >= trendWindow {
		recent := history[len(history)-trendWindow:]
		trend := recent[len(recent)-1].Price.Sub(recent[0].Price)
		switch trend.Sign() {
		case 1:
			signals = append(signals, "7-day upward trend")
			if kind == SentimentNeutral {
				kind = SentimentBullish
			}
		case -1:
			signals = append(signals, "7-day downward trend")
			if kind == SentimentNeutral {
				kind = SentimentBearish
			}
		}
	}

	if len(signals) == 0 {
		signals = append(signals, "Market showing neutral signals")
	}

	return Sentiment{
		Sentiment:  kind,
		Confidence: clamp(confidence, confidenceFloor, confidenceCeiling),
		Signals:    signals,
	}
}

func strongMoveConfidence(change decimal.Decimal) int {
	c := decimal.NewFromInt(60).Add(change.Abs())
	if c.GreaterThan(decimal.NewFromInt(strongMoveCap)) {
		return strongMoveCap
	}
	return int(c.IntPart())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
