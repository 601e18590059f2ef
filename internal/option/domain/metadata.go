package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MetadataImage 占位图片，尚未为每个合约生成独立图像
const MetadataImage = "ipfs://QmSampleImageHashForOptionNFT"

const (
	TraitOptionType  = "Option Type"
	TraitStrikePrice = "Strike Price (USD)"
	TraitUnderlying  = "Underlying Asset"
	TraitExpiryDate  = "Expiry Date"
	TraitPremium     = "Premium (ADA)"
	TraitStatus      = "Status"
)

// Metadata NFT 展示用元数据，由合约单向渲染，不会被反解析
type Metadata struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Image       string     `json:"image"`
	Attributes  []Trait    `json:"attributes"`
	OptionData  OptionData `json:"optionData"`
}

type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// OptionData 附带在元数据中的合约条款，时间为毫秒时间戳
type OptionData struct {
	StrikePrice     decimal.Decimal `json:"strikePrice"`
	ExpiryTimestamp int64           `json:"expiryTimestamp"`
	UnderlyingAsset string          `json:"underlyingAsset"`
	OptionType      OptionType      `json:"optionType"`
	Premium         decimal.Decimal `json:"premium"`
	CreatedAt       int64           `json:"createdAt"`
	Exercised       bool            `json:"exercised"`
}

// RenderMetadata 渲染合约元数据
func RenderMetadata(c OptionContract) Metadata {
	upper := strings.ToUpper(string(c.OptionType))
	status := "Active"
	if c.Exercised {
		status = "Exercised"
	}

	return Metadata{
		Name: fmt.Sprintf("%s Option - %s", upper, c.UnderlyingAsset),
		Description: fmt.Sprintf("Option contract: %s %s at $%s strike, expires %s",
			c.OptionType, c.UnderlyingAsset, c.StrikePrice, c.ExpiryAt.Format("Jan 2, 2006")),
		Image: MetadataImage,
		Attributes: []Trait{
			{TraitType: TraitOptionType, Value: upper},
			{TraitType: TraitStrikePrice, Value: c.StrikePrice.String()},
			{TraitType: TraitUnderlying, Value: c.UnderlyingAsset},
			{TraitType: TraitExpiryDate, Value: c.ExpiryAt.Format("2006-01-02 15:04")},
			{TraitType: TraitPremium, Value: c.Premium.String()},
			{TraitType: TraitStatus, Value: status},
		},
		OptionData: OptionData{
			StrikePrice:     c.StrikePrice,
			ExpiryTimestamp: c.ExpiryAt.UnixMilli(),
			UnderlyingAsset: c.UnderlyingAsset,
			OptionType:      c.OptionType,
			Premium:         c.Premium,
			CreatedAt:       c.CreatedAt.UnixMilli(),
			Exercised:       c.Exercised,
		},
	}
}

// MintIntent 铸造意图：一枚 NFT 附带 721 标签元数据，接收方为持有人
func MintIntent(c OptionContract) Intent {
	md := RenderMetadata(c)
	return Intent{
		Kind:      IntentMint,
		OptionID:  c.ID,
		AssetName: c.AssetName,
		To:        c.Owner,
		Amount:    decimal.NewFromInt(1),
		Label:     MetadataLabel,
		Metadata:  &md,
	}
}
