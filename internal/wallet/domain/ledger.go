package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 账本方向 / 钱包类型
const (
	DirectionDeposit  = "deposit"
	WalletTypeDeposit = "deposit"
)

// ErrAlreadyCredited 这笔链上交易已经入账过（不是错误，是幂等跳过）
var ErrAlreadyCredited = errors.New("transaction already credited")

// LedgerTransaction 追加型账本行，只插入不修改不删除
// tx_hash 全局唯一，是防止同一笔链上转账重复入账的唯一闸门
type LedgerTransaction struct {
	ID          int64
	TxHash      string          `gorm:"uniqueIndex:uniq_tx_hash;size:80"`
	UserID      int64           `gorm:"index:idx_user"`
	Direction   string          `gorm:"size:16"`
	Amount      decimal.Decimal `gorm:"type:decimal(36,18)"`
	WalletType  string          `gorm:"size:16"`
	Description string          `gorm:"size:255"`
	CreatedAt   time.Time
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

// UserBalance 余额聚合，只通过 LedgerRepo.Credit 原子变更
type UserBalance struct {
	ID             int64
	UserID         int64           `gorm:"uniqueIndex:uniq_balance_user"`
	DepositBalance decimal.Decimal `gorm:"type:decimal(36,18);default:0"`
	Version        int64           `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UserBalance) TableName() string {
	return "user_balances"
}

// LedgerRepo 账本网关
type LedgerRepo interface {
	// Exists 这笔 tx_hash 是否已入账
	Exists(ctx context.Context, txHash string) (bool, error)
	// Credit 原子入账：账本行插入 + 余额增加在同一个事务里
	// tx_hash 已存在时返回 ErrAlreadyCredited，余额不变
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, txHash string, description string) error
	// GetDepositBalance 权威充值余额
	GetDepositBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	// ListDeposits 充值流水，按时间倒序分页
	ListDeposits(ctx context.Context, userID int64, page, limit int) ([]*LedgerTransaction, error)
}
