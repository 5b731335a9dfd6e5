package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/security"
	"gorm.io/gorm"
)

// maxVouchersPerCall bounds one AddVouchers request.
const maxVouchersPerCall = 1000

// RewardInput describes a new reward.
type RewardInput struct {
	Name            string
	CoinCost        int64
	Stock           int64
	RequiresVoucher bool
	Inactive        bool
}

// CreateReward stores a new reward.
func (a *Allocator) CreateReward(ctx context.Context, in RewardInput) (*models.Reward, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("reward name is required")
	}
	if in.CoinCost <= 0 {
		return nil, apperr.ErrInvalidAmount.WithMessage("coin cost must be a positive integer")
	}
	if in.Stock < 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("stock must not be negative")
	}

	now := a.clock.Now()
	reward := &models.Reward{
		ID:              uuid.NewString(),
		Name:            name,
		CoinCost:        in.CoinCost,
		Stock:           in.Stock,
		IsActive:        !in.Inactive,
		RequiresVoucher: in.RequiresVoucher,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	errTx := dbutil.RunInTransaction(ctx, a.db, func(tx *gorm.DB) error {
		return tx.Create(reward).Error
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return reward, nil
}

// VoucherBatch is the outcome of AddVouchers.
type VoucherBatch struct {
	Before   models.Reward
	After    models.Reward
	Vouchers []models.Voucher
}

// AddVouchers attaches codes to rewardID, generating count codes when none are given.
// Stock grows by the number of vouchers added and the reward starts requiring vouchers.
func (a *Allocator) AddVouchers(ctx context.Context, rewardID string, codes []string, count int) (*VoucherBatch, error) {
	cleaned := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			return nil, apperr.ErrInvalidInput.WithMessage("voucher code %s listed twice", code)
		}
		seen[code] = struct{}{}
		cleaned = append(cleaned, code)
	}
	if len(cleaned) == 0 {
		if count <= 0 {
			return nil, apperr.ErrInvalidInput.WithMessage("codes or a positive count are required")
		}
		if count > maxVouchersPerCall {
			return nil, apperr.ErrInvalidInput.WithMessage("at most %d vouchers per call", maxVouchersPerCall)
		}
		for i := 0; i < count; i++ {
			code, errGen := security.GenerateVoucherCode()
			if errGen != nil {
				return nil, apperr.Internal(errGen)
			}
			cleaned = append(cleaned, code)
		}
	}
	if len(cleaned) > maxVouchersPerCall {
		return nil, apperr.ErrInvalidInput.WithMessage("at most %d vouchers per call", maxVouchersPerCall)
	}

	var batch *VoucherBatch
	errTx := dbutil.RunInTransaction(ctx, a.db, func(tx *gorm.DB) error {
		reward, errLock := LockReward(tx, rewardID)
		if errLock != nil {
			return errLock
		}
		now := a.clock.Now()
		vouchers := make([]models.Voucher, 0, len(cleaned))
		for _, code := range cleaned {
			vouchers = append(vouchers, models.Voucher{
				ID:        uuid.NewString(),
				RewardID:  reward.ID,
				Code:      code,
				CreatedAt: now,
			})
		}
		if errCreate := tx.CreateInBatches(vouchers, 200).Error; errCreate != nil {
			if dbutil.IsUniqueViolation(errCreate) {
				return apperr.ErrInvalidInput.WithMessage("voucher code already exists")
			}
			return errCreate
		}

		added := int64(len(vouchers))
		if errUpdate := tx.Model(&models.Reward{}).
			Where("id = ?", reward.ID).
			Updates(map[string]any{
				"stock":            gorm.Expr("stock + ?", added),
				"requires_voucher": true,
				"updated_at":       now,
			}).Error; errUpdate != nil {
			return errUpdate
		}

		after := *reward
		after.Stock += added
		after.RequiresVoucher = true
		after.UpdatedAt = now
		batch = &VoucherBatch{Before: *reward, After: after, Vouchers: vouchers}
		return nil
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return batch, nil
}

// SetRewardActive toggles whether rewardID accepts redemptions and returns the reward before and after.
func (a *Allocator) SetRewardActive(ctx context.Context, rewardID string, active bool) (*models.Reward, *models.Reward, error) {
	var before, after models.Reward
	errTx := dbutil.RunInTransaction(ctx, a.db, func(tx *gorm.DB) error {
		reward, errLock := LockReward(tx, rewardID)
		if errLock != nil {
			return errLock
		}
		now := a.clock.Now()
		if errUpdate := tx.Model(&models.Reward{}).
			Where("id = ?", reward.ID).
			Updates(map[string]any{"is_active": active, "updated_at": now}).Error; errUpdate != nil {
			return errUpdate
		}
		before = *reward
		after = *reward
		after.IsActive = active
		after.UpdatedAt = now
		return nil
	})
	if errTx != nil {
		return nil, nil, apperr.Internal(errTx)
	}
	return &before, &after, nil
}

// GetReward returns one reward.
func (a *Allocator) GetReward(ctx context.Context, rewardID string) (*models.Reward, error) {
	var reward models.Reward
	if errFind := a.db.WithContext(ctx).Where("id = ?", rewardID).First(&reward).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRewardNotFound
		}
		return nil, apperr.Internal(errFind)
	}
	return &reward, nil
}

// ListRewards returns rewards ordered by name. activeOnly hides disabled rewards.
func (a *Allocator) ListRewards(ctx context.Context, activeOnly bool) ([]models.Reward, error) {
	q := a.db.WithContext(ctx).Model(&models.Reward{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.Reward
	if errFind := q.Order("name ASC, id ASC").Find(&rows).Error; errFind != nil {
		return nil, apperr.Internal(errFind)
	}
	return rows, nil
}

// ListRedemptions returns one page of an account's redemptions, newest first, and the total count.
func (a *Allocator) ListRedemptions(ctx context.Context, accountID string, page, limit int) ([]models.Redemption, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var total int64
	if errCount := a.db.WithContext(ctx).Model(&models.Redemption{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal(errCount)
	}
	var rows []models.Redemption
	if errFind := a.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, apperr.Internal(errFind)
	}
	return rows, total, nil
}
