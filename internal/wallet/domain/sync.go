package domain

import (
	"context"
	"math/big"
	"time"
)

// SyncState 每个用户一行的同步游标
// last_synced_block 单调不减，只在整个扫描范围处理完后推进
type SyncState struct {
	UserID          int64 `gorm:"primaryKey;autoIncrement:false"`
	LastSyncedBlock int64
	LastSyncedAt    time.Time
}

func (SyncState) TableName() string {
	return "sync_states"
}

// CursorRepo 同步游标存储，无业务逻辑
type CursorRepo interface {
	// Get 读取游标，不存在则按 0 创建（upsert 语义，容忍并发首次同步）
	Get(ctx context.Context, userID int64) (int64, error)
	// Set 推进游标
	Set(ctx context.Context, userID int64, block int64, at time.Time) error
}

// TokenTransfer 链上一笔代币转账
type TokenTransfer struct {
	TxHash        string
	FromAddress   string
	ToAddress     string
	TokenContract string
	RawAmount     *big.Int // 最小单位整数 (wei 级)，精度处理前不许转浮点
	BlockNumber   int64
}

// ChainGateway 链上数据提供方
// 服务端按单一代币合约过滤，但调用方仍须自己复核收款地址和合约，
// 不把提供方的过滤当成唯一权威。
type ChainGateway interface {
	// CurrentHeight 当前链上高度；失败返回 UpstreamUnavailable，本次 pass 整体中止
	CurrentHeight(ctx context.Context) (int64, error)
	// IncomingTransfers 从 fromBlock (含) 起打到 address 的代币转账，按区块升序
	IncomingTransfers(ctx context.Context, address string, fromBlock int64) ([]TokenTransfer, error)
}

// SyncReport 一次同步 pass 的结果
type SyncReport struct {
	SyncedCount     int   `json:"synced_count"`
	LastSyncedBlock int64 `json:"last_synced_block"`
}
