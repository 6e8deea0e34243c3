package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/xerr"
)

// Get 读取同步游标，不存在则按 0 创建
// 并发首次同步会同时尝试插默认行，DoNothing 把这个良性竞态吞掉
func (r *Repo) Get(ctx context.Context, userID int64) (int64, error) {
	db := r.getDb(ctx).WithContext(ctx)

	var state domain.SyncState
	err := db.Where("user_id = ?", userID).First(&state).Error
	if err == nil {
		return state.LastSyncedBlock, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, xerr.New(xerr.DbError, fmt.Sprintf("query sync cursor failed: %v", err))
	}

	seed := domain.SyncState{UserID: userID, LastSyncedBlock: 0, LastSyncedAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, xerr.New(xerr.DbError, fmt.Sprintf("init sync cursor failed: %v", err))
	}
	return 0, nil
}

// Set 推进游标 (Upsert: 不存在则插入，存在则更新)
func (r *Repo) Set(ctx context.Context, userID int64, block int64, at time.Time) error {
	state := domain.SyncState{
		UserID:          userID,
		LastSyncedBlock: block,
		LastSyncedAt:    at,
	}

	err := r.getDb(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_block", "last_synced_at"}),
	}).Create(&state).Error

	if err != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("update sync cursor failed: %v", err))
	}
	return nil
}
