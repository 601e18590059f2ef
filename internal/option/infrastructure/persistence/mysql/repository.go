// Package mysql 期权合约的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/optionsdesk/internal/option/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type optionRepository struct {
	db *gorm.DB
}

// NewOptionRepository 创建期权仓储
func NewOptionRepository(db *gorm.DB) domain.OptionRepository {
	return &optionRepository{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OptionPO{})
}

// Save 按主键 upsert
// 持有人与行权状态只能经 ClaimExercise 和挂单成交修改，冲突时不覆盖
func (r *optionRepository) Save(ctx context.Context, c *domain.OptionContract) error {
	var po OptionPO
	po.FromDomain(c)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mint_tx_id", "updated_at"}),
	}).Create(&po).Error
	if err != nil {
		return fmt.Errorf("failed to save option %s: %w", c.ID, err)
	}
	return nil
}

func (r *optionRepository) Get(ctx context.Context, id string) (*domain.OptionContract, error) {
	var po OptionPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, id)
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *optionRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.OptionContract, error) {
	var pos []*OptionPO
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at desc").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	res := make([]*domain.OptionContract, len(pos))
	for i, po := range pos {
		res[i] = po.ToDomain()
	}
	return res, nil
}

// ClaimExercise 并发行权时只有一方更新成功
func (r *optionRepository) ClaimExercise(ctx context.Context, id, owner string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&OptionPO{}).
		Where("id = ? AND owner = ? AND exercised = ?", id, owner, false).
		Updates(map[string]any{"exercised": true, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to claim exercise of option %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Exercised {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExercised, id)
	}
	return fmt.Errorf("%w: %s is now owned by %s", domain.ErrOptionChanged, id, current.Owner)
}

func (r *optionRepository) ReleaseExercise(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&OptionPO{}).
		Where("id = ? AND exercised = ?", id, true).
		Updates(map[string]any{"exercised": false, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to release exercise of option %s: %w", id, err)
	}
	return nil
}
