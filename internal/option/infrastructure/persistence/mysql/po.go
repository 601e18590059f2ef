package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
)

// OptionPO 期权合约表
type OptionPO struct {
	ID              string          `gorm:"column:id;type:varchar(36);primaryKey"`
	AssetName       string          `gorm:"column:asset_name;type:varchar(64);uniqueIndex;not null"`
	Owner           string          `gorm:"column:owner;type:varchar(128);index;not null"`
	OptionType      string          `gorm:"column:option_type;type:varchar(8);not null"`
	StrikePrice     decimal.Decimal `gorm:"column:strike_price;type:decimal(32,18);not null"`
	Premium         decimal.Decimal `gorm:"column:premium;type:decimal(32,18);not null"`
	UnderlyingAsset string          `gorm:"column:underlying_asset;type:varchar(16);index;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null"`
	ExpiryAt        time.Time       `gorm:"column:expiry_at;index;not null"`
	Exercised       bool            `gorm:"column:exercised;not null;default:false"`
	MintTxID        string          `gorm:"column:mint_tx_id;type:varchar(128)"`
	UpdatedAt       time.Time
}

func (OptionPO) TableName() string { return "option_contracts" }

func (po *OptionPO) ToDomain() *domain.OptionContract {
	return &domain.OptionContract{
		ID:              po.ID,
		AssetName:       po.AssetName,
		Owner:           po.Owner,
		OptionType:      domain.OptionType(po.OptionType),
		StrikePrice:     po.StrikePrice,
		Premium:         po.Premium,
		UnderlyingAsset: po.UnderlyingAsset,
		CreatedAt:       po.CreatedAt.UTC(),
		ExpiryAt:        po.ExpiryAt.UTC(),
		Exercised:       po.Exercised,
		MintTxID:        po.MintTxID,
	}
}

func (po *OptionPO) FromDomain(c *domain.OptionContract) {
	po.ID = c.ID
	po.AssetName = c.AssetName
	po.Owner = c.Owner
	po.OptionType = string(c.OptionType)
	po.StrikePrice = c.StrikePrice
	po.Premium = c.Premium
	po.UnderlyingAsset = c.UnderlyingAsset
	po.CreatedAt = c.CreatedAt
	po.ExpiryAt = c.ExpiryAt
	po.Exercised = c.Exercised
	po.MintTxID = c.MintTxID
}
