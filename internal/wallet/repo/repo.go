package repo

import (
	"context"

	"gorm.io/gorm"
	"investex.com/internal/wallet/domain"
)

type txKey struct{}

type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// 确保 Repo 实现了所有接口
var (
	_ domain.WalletRepo = (*Repo)(nil)
	_ domain.CursorRepo = (*Repo)(nil)
	_ domain.LedgerRepo = (*Repo)(nil)
)

// AutoMigrate 建表，启动时执行
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.UserWallet{},
		&domain.SyncState{},
		&domain.LedgerTransaction{},
		&domain.UserBalance{},
		&derivationCounter{},
	)
}

// Transaction 实现事务：把 tx 注入到 context，嵌套调用自动用同一个事务
func (r *Repo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

// getDb 优先取 context 里的事务连接
func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
