package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/xerr"
)

// 计数器行，单行表 derivation_counters
// "读最大值加一" 两步写法有并发窟窿，这里统一走行锁
type derivationCounter struct {
	ID        int64
	Name      string `gorm:"uniqueIndex:uniq_counter_name;size:32"`
	NextIndex uint32
}

func (derivationCounter) TableName() string {
	return "derivation_counters"
}

const depositCounterName = "deposit_index"

// Create 保存钱包行
// 唯一索引冲突原样抛 gorm.ErrDuplicatedKey，由 service 决定重试还是返回已有行
func (r *Repo) Create(ctx context.Context, wallet *domain.UserWallet) error {
	err := r.getDb(ctx).WithContext(ctx).Create(wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return xerr.New(xerr.DbError, fmt.Sprintf("save wallet failed: %v", err))
	}
	return nil
}

// GetByUserID 没找到返回 (nil, nil)
func (r *Repo) GetByUserID(ctx context.Context, userID int64) (*domain.UserWallet, error) {
	var wallet domain.UserWallet
	err := r.getDb(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("get wallet by user id failed: %v", err))
	}
	return &wallet, nil
}

// AllocateIndex 原子领取下一个派生下标
// SELECT ... FOR UPDATE 锁住计数器行，再 +1 写回，并发请求串行化，
// 两个分配请求不可能拿到同一个 next_index。
func (r *Repo) AllocateIndex(ctx context.Context) (uint32, error) {
	var allocated uint32

	err := r.Transaction(ctx, func(txCtx context.Context) error {
		db := r.getDb(txCtx).WithContext(txCtx)

		var counter derivationCounter
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", depositCounterName).
			First(&counter).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 第一次分配：先插计数器行再重读加锁
			// 并发首次分配可能撞 uniq_counter_name，DoNothing 后重读即可
			seed := derivationCounter{Name: depositCounterName, NextIndex: 0}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
				return err
			}
			err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("name = ?", depositCounterName).
				First(&counter).Error
		}
		if err != nil {
			return err
		}

		allocated = counter.NextIndex
		return db.Model(&derivationCounter{}).
			Where("id = ?", counter.ID).
			Update("next_index", counter.NextIndex+1).Error
	})

	if err != nil {
		return 0, xerr.New(xerr.DbError, fmt.Sprintf("allocate derivation index failed: %v", err))
	}
	return allocated, nil
}

// ListUserIDs 全量钱包用户ID，后台扫描用
func (r *Repo) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.getDb(ctx).WithContext(ctx).
		Model(&domain.UserWallet{}).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("list wallet users failed: %v", err))
	}
	return ids, nil
}
