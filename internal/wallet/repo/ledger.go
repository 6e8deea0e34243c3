package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/orm"
	"investex.com/pkg/xerr"
)

// Exists 这笔链上交易是否已经入账
func (r *Repo) Exists(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.getDb(ctx).WithContext(ctx).
		Model(&domain.LedgerTransaction{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	if err != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("check ledger tx failed: %v", err))
	}
	return count > 0, nil
}

// Credit 原子入账
// 一个事务里完成：账本行插入 + 余额聚合增加 + 钱包展示余额刷新。
// tx_hash 的唯一索引是唯一的幂等闸门：并发 pass 同时入同一笔，
// 只有一个 INSERT 成功，另一个拿到 ErrAlreadyCredited。
func (r *Repo) Credit(ctx context.Context, userID int64, amount decimal.Decimal, txHash string, description string) error {
	err := r.Transaction(ctx, func(txCtx context.Context) error {
		db := r.getDb(txCtx).WithContext(txCtx)

		ledgerTx := domain.LedgerTransaction{
			TxHash:      txHash,
			UserID:      userID,
			Direction:   domain.DirectionDeposit,
			Amount:      amount,
			WalletType:  domain.WalletTypeDeposit,
			Description: description,
		}
		if err := db.Create(&ledgerTx).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyCredited
			}
			return err
		}

		// 余额增加，version 乐观锁字段顺带 +1
		res := db.Model(&domain.UserBalance{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"deposit_balance": gorm.Expr("deposit_balance + ?", amount),
				"version":         gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 第一笔充值，余额行还不存在
			seed := domain.UserBalance{UserID: userID, DepositBalance: amount, Version: 1}
			if err := db.Create(&seed).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// 并发首充：行刚被别人建出来，改走增量更新
					return db.Model(&domain.UserBalance{}).
						Where("user_id = ?", userID).
						Updates(map[string]interface{}{
							"deposit_balance": gorm.Expr("deposit_balance + ?", amount),
							"version":         gorm.Expr("version + 1"),
						}).Error
				}
				return err
			}
		}

		// 钱包上的余额只是展示缓存，同事务刷新
		return db.Model(&domain.UserWallet{}).
			Where("user_id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})

	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCredited) {
			return domain.ErrAlreadyCredited
		}
		return xerr.New(xerr.DbError, fmt.Sprintf("credit ledger failed: %v", err))
	}
	return nil
}

// GetDepositBalance 权威充值余额，没有余额行就是 0
func (r *Repo) GetDepositBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance domain.UserBalance
	err := r.getDb(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, xerr.New(xerr.DbError, fmt.Sprintf("get balance failed: %v", err))
	}
	return balance.DepositBalance, nil
}

// ListDeposits 充值流水，按时间倒序分页
func (r *Repo) ListDeposits(ctx context.Context, userID int64, page, limit int) ([]*domain.LedgerTransaction, error) {
	list := make([]*domain.LedgerTransaction, 0, limit)
	db := r.getDb(ctx).WithContext(ctx).
		Model(&domain.LedgerTransaction{}).
		Where("user_id = ? AND direction = ?", userID, domain.DirectionDeposit).
		Order("created_at DESC, id DESC")

	err := orm.ApplyPagination(db, page, limit).Find(&list).Error
	if err != nil {
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("list deposits failed: %v", err))
	}
	return list, nil
}
