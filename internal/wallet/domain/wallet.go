package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserWallet 用户充值钱包，每个用户一行
// deposit_address 是 (xpub, derivation_index) 的纯函数，分配后不可变
type UserWallet struct {
	ID             int64
	UserID         int64  `gorm:"uniqueIndex:uniq_user"`
	DepositAddress string `gorm:"uniqueIndex:uniq_address;size:64"`
	// 全局唯一、单调分配，废弃的分配也不回收复用
	DerivationIndex uint32 `gorm:"uniqueIndex:uniq_derivation_index"`
	DerivationPath  string `gorm:"size:32"` // "account/0/<index>"
	// 余额展示缓存，权威余额在 ledger (user_balances)
	Balance   decimal.Decimal `gorm:"type:decimal(36,18);default:0"`
	CreatedAt time.Time
}

// TableName 指定表名
func (UserWallet) TableName() string {
	return "user_wallets"
}

// WalletRepo 钱包仓储接口
type WalletRepo interface {
	// Create 保存钱包行，derivation_index / user_id 撞唯一索引时返回 ErrDuplicatedKey
	Create(ctx context.Context, wallet *UserWallet) error
	// GetByUserID 没找到返回 (nil, nil)
	GetByUserID(ctx context.Context, userID int64) (*UserWallet, error)
	// AllocateIndex 原子领取下一个派生下标（计数器行 + 行锁，见 repo 实现）
	AllocateIndex(ctx context.Context) (uint32, error)
	// ListUserIDs 全量钱包用户，后台扫描用
	ListUserIDs(ctx context.Context) ([]int64, error)
	// Transaction 事务支持
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
