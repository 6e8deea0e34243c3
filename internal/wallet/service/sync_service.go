package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/logger"
	"investex.com/pkg/metrics"
	"investex.com/pkg/xerr"
	"investex.com/pkg/xredis"
)

// TokenConfig 充值代币配置（单一代币，多币种不在范围内）
type TokenConfig struct {
	Contract string // 代币合约地址
	Decimals int32  // 精度指数，USDT-ERC20 为 6，测试代币多为 18
	Symbol   string
}

// SyncService 充值同步的核心编排
// 一次 pass: 读游标 -> 问链上高度 -> 拉转账 -> 过滤 -> 查重入账 -> 推游标。
// pass 之间不共享任何进程内状态，全部状态在 cursor 和 ledger 里。
type SyncService struct {
	wallets domain.WalletRepo
	cursor  domain.CursorRepo
	ledger  domain.LedgerRepo
	gateway domain.ChainGateway
	token   TokenConfig
	// 同一用户并发 pass 的建议性锁，纯优化；正确性由 ledger 唯一索引保证
	lock *xredis.Lock
	now  func() time.Time
}

func NewSyncService(wallets domain.WalletRepo, cursor domain.CursorRepo,
	ledger domain.LedgerRepo, gateway domain.ChainGateway,
	token TokenConfig, lock *xredis.Lock) *SyncService {
	return &SyncService{
		wallets: wallets,
		cursor:  cursor,
		ledger:  ledger,
		gateway: gateway,
		token:   token,
		lock:    lock,
		now:     time.Now,
	}
}

// SyncDeposits 执行一次同步 pass
// 阶段 1-5 (身份/钱包/游标/高度/拉取) 任一失败整个 pass 中止，零状态变更；
// 阶段 7 单笔入账失败只记日志继续，游标仍然推进 (取舍见 DESIGN.md)。
func (s *SyncService) SyncDeposits(ctx context.Context, uid int64) (*domain.SyncReport, error) {
	// 1. 身份已由认证中间件解析，这里 fail closed 兜底
	if uid <= 0 {
		metrics.SyncPassTotal.WithLabelValues("unauthorized").Inc()
		return nil, xerr.NewErrCode(xerr.Unauthorized)
	}

	// 2. 钱包是开户时的前置条件，这里不负责补开
	wallet, err := s.wallets.GetByUserID(ctx, uid)
	if err != nil {
		metrics.SyncPassTotal.WithLabelValues("internal").Inc()
		return nil, err
	}
	if wallet == nil {
		metrics.SyncPassTotal.WithLabelValues("no_wallet").Inc()
		return nil, xerr.NewErrCode(xerr.WalletNotProvisioned)
	}

	// 建议性锁：抢不到也继续跑，重复 pass 由 ledger 幂等兜底
	if s.lock != nil {
		lockKey := fmt.Sprintf("deposit:sync:lock:%d", uid)
		if s.lock.TryAcquire(ctx, lockKey, time.Minute) {
			defer s.lock.Release(ctx, lockKey)
		} else {
			logger.Debug(ctx, "concurrent sync pass for user", zap.Int64("uid", uid))
		}
	}

	// 3. 游标，不存在按 0 创建
	lastSynced, err := s.cursor.Get(ctx, uid)
	if err != nil {
		metrics.SyncPassTotal.WithLabelValues("internal").Inc()
		return nil, err
	}

	// 4. 扫描窗口。clamp 防止游标领先于节点视图 (节点落后) 时把区间扫反
	chainHeight, err := s.gateway.CurrentHeight(ctx)
	if err != nil {
		logger.Error(ctx, "获取链上高度出错", zap.Error(err), zap.Int64("uid", uid))
		metrics.SyncPassTotal.WithLabelValues("upstream").Inc()
		return nil, xerr.NewErrCode(xerr.UpstreamUnavailable)
	}
	fromBlock := lastSynced + 1
	if fromBlock > chainHeight {
		fromBlock = chainHeight
	}

	// 5. 拉转账。空结果是正常情况 ("0 笔新充值")，不是错误
	transfers, err := s.gateway.IncomingTransfers(ctx, wallet.DepositAddress, fromBlock)
	if err != nil {
		logger.Error(ctx, "拉取链上转账出错", zap.Error(err),
			zap.Int64("uid", uid), zap.Int64("from_block", fromBlock))
		metrics.SyncPassTotal.WithLabelValues("upstream").Inc()
		return nil, xerr.NewErrCode(xerr.UpstreamUnavailable)
	}

	syncedCount := 0
	latestBlock := lastSynced

	for _, t := range transfers {
		// 6. 过滤：收款地址 + 代币合约都要自己复核，不信任提供方的过滤
		if !strings.EqualFold(t.ToAddress, wallet.DepositAddress) {
			continue
		}
		if !strings.EqualFold(t.TokenContract, s.token.Contract) {
			continue
		}

		// 过滤通过的转账无论入账结果如何都算 "检查过"，游标要覆盖它
		if t.BlockNumber > latestBlock {
			latestBlock = t.BlockNumber
		}

		// 7. 查重 + 入账。幂等检查按单笔做，重叠窗口重跑永远安全
		exists, err := s.ledger.Exists(ctx, t.TxHash)
		if err != nil {
			logger.Error(ctx, "查重失败，跳过该笔", zap.Error(err), zap.String("tx_hash", t.TxHash))
			metrics.DepositCreditFailTotal.Inc()
			continue
		}
		if exists {
			// 已入账，静默跳过
			continue
		}

		// 最小单位整数除以精度指数，全程 decimal，不经过 float
		amount := decimal.NewFromBigInt(t.RawAmount, 0).Shift(-s.token.Decimals)
		desc := fmt.Sprintf("%s deposit from %s", s.token.Symbol, t.FromAddress)

		if err := s.ledger.Credit(ctx, uid, amount, t.TxHash, desc); err != nil {
			if err == domain.ErrAlreadyCredited {
				// 并发 pass 抢先入了这笔，符合预期
				continue
			}
			// 单笔失败不中止整个 pass
			logger.Error(ctx, "充值入账失败", zap.Error(err),
				zap.String("tx_hash", t.TxHash), zap.String("amount", amount.String()))
			metrics.DepositCreditFailTotal.Inc()
			continue
		}

		syncedCount++
		metrics.DepositCreditedTotal.Inc()
		logger.Info(ctx, "充值入账成功",
			zap.Int64("uid", uid),
			zap.String("tx_hash", t.TxHash),
			zap.String("amount", amount.String()),
			zap.Int64("block", t.BlockNumber))
	}

	// 8. 推游标。无论入了几笔都执行：游标的含义是 "检查到这里"，
	// 不是 "成功入账到这里"
	if err := s.cursor.Set(ctx, uid, latestBlock, s.now()); err != nil {
		// 入账已提交，游标没推上去；下一个 pass 重扫该区间，幂等兜底
		logger.Error(ctx, "游标推进失败", zap.Error(err), zap.Int64("uid", uid))
		metrics.SyncPassTotal.WithLabelValues("internal").Inc()
		return nil, err
	}

	metrics.SyncPassTotal.WithLabelValues("ok").Inc()
	// 9. 汇报
	return &domain.SyncReport{
		SyncedCount:     syncedCount,
		LastSyncedBlock: latestBlock,
	}, nil
}
