// Package mysql 挂单的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsdesk/internal/marketplace/domain"
	optiondomain "github.com/wyfcoding/optionsdesk/internal/option/domain"
	optionmysql "github.com/wyfcoding/optionsdesk/internal/option/infrastructure/persistence/mysql"
	"github.com/wyfcoding/optionsdesk/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingPO 挂单表
type ListingPO struct {
	ID         string          `gorm:"column:id;type:varchar(36);primaryKey"`
	OptionID   string          `gorm:"column:option_id;type:varchar(36);index;not null"`
	Seller     string          `gorm:"column:seller;type:varchar(128);index;not null"`
	AskPremium decimal.Decimal `gorm:"column:ask_premium;type:decimal(32,18);not null"`
	Status     string          `gorm:"column:status;type:varchar(16);index;not null"`
	Buyer      string          `gorm:"column:buyer;type:varchar(128)"`
	TxID       string          `gorm:"column:tx_id;type:varchar(128)"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null"`
}

func (ListingPO) TableName() string { return "marketplace_listings" }

func (po *ListingPO) ToDomain() *domain.Listing {
	return &domain.Listing{
		ID:         po.ID,
		OptionID:   po.OptionID,
		Seller:     po.Seller,
		AskPremium: po.AskPremium,
		Status:     domain.ListingStatus(po.Status),
		Buyer:      po.Buyer,
		TxID:       po.TxID,
		CreatedAt:  po.CreatedAt.UTC(),
		UpdatedAt:  po.UpdatedAt.UTC(),
	}
}

func (po *ListingPO) FromDomain(l *domain.Listing) {
	po.ID = l.ID
	po.OptionID = l.OptionID
	po.Seller = l.Seller
	po.AskPremium = l.AskPremium
	po.Status = string(l.Status)
	po.Buyer = l.Buyer
	po.TxID = l.TxID
	po.CreatedAt = l.CreatedAt
	po.UpdatedAt = l.UpdatedAt
}

type listingRepository struct {
	db *db.DB
}

// NewListingRepository 创建挂单仓储
func NewListingRepository(database *db.DB) domain.ListingRepository {
	return &listingRepository{db: database}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ListingPO{})
}

func (r *listingRepository) Save(ctx context.Context, l *domain.Listing) error {
	var po ListingPO
	po.FromDomain(l)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "buyer", "tx_id", "updated_at"}),
	}).Create(&po).Error
	if err != nil {
		return fmt.Errorf("failed to save listing %s: %w", l.ID, err)
	}
	return nil
}

func (r *listingRepository) Get(ctx context.Context, id string) (*domain.Listing, error) {
	var po ListingPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *listingRepository) FindOpenByOption(ctx context.Context, optionID string) (*domain.Listing, error) {
	var po ListingPO
	err := r.db.WithContext(ctx).
		Where("option_id = ? AND status = ?", optionID, string(domain.ListingOpen)).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *listingRepository) ListOpen(ctx context.Context) ([]*domain.Listing, error) {
	var pos []*ListingPO
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.ListingOpen)).
		Order("created_at asc").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Listing, len(pos))
	for i, po := range pos {
		res[i] = po.ToDomain()
	}
	return res, nil
}

// Close 条件更新，与并发成交互斥
func (r *listingRepository) Close(ctx context.Context, l *domain.Listing) error {
	return closeOpen(r.db.WithContext(ctx), l, map[string]any{
		"status":     string(l.Status),
		"updated_at": l.UpdatedAt,
	})
}

// Fill 条件更新挂单状态，并发成交时只有一方更新成功
// 合约换主同样带条件，已行权或已过期的合约不会转出
func (r *listingRepository) Fill(ctx context.Context, l *domain.Listing, option *optiondomain.OptionContract) error {
	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		err := closeOpen(tx, l, map[string]any{
			"status":     string(l.Status),
			"buyer":      l.Buyer,
			"tx_id":      l.TxID,
			"updated_at": l.UpdatedAt,
		})
		if err != nil {
			return err
		}

		res := tx.Model(&optionmysql.OptionPO{}).
			Where("id = ? AND owner = ? AND exercised = ? AND expiry_at > ?",
				option.ID, l.Seller, false, l.UpdatedAt).
			Updates(map[string]any{"owner": option.Owner, "updated_at": l.UpdatedAt})
		if res.Error != nil {
			return fmt.Errorf("failed to transfer option %s: %w", option.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s cannot be transferred from %s", domain.ErrNotListable, option.ID, l.Seller)
		}
		return nil
	})
}

func closeOpen(tx *gorm.DB, l *domain.Listing, updates map[string]any) error {
	res := tx.Model(&ListingPO{}).
		Where("id = ? AND status = ?", l.ID, string(domain.ListingOpen)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update listing %s: %w", l.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrListingClosed, l.ID)
	}
	return nil
}
