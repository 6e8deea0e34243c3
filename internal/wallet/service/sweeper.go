package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/logger"
	"investex.com/pkg/xerr"
)

// Sweeper 后台定时对全量钱包跑同步 pass
// 用户不点 "同步" 按钮充值也能到账。单个用户失败不影响其他用户。
type Sweeper struct {
	wallets  domain.WalletRepo
	sync     *SyncService
	balance  *BalanceService
	interval time.Duration
	sched    gocron.Scheduler
}

func NewSweeper(wallets domain.WalletRepo, sync *SyncService, balance *BalanceService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Sweeper{
		wallets:  wallets,
		sync:     sync,
		balance:  balance,
		interval: interval,
	}
}

// Start 启动调度器；Stop 时优雅退出
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.sweep(ctx)
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	logger.Info(ctx, "deposit sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	uids, err := s.wallets.ListUserIDs(ctx)
	if err != nil {
		logger.Error(ctx, "sweep list wallets failed", zap.Error(err))
		return
	}

	for _, uid := range uids {
		if ctx.Err() != nil {
			return
		}

		report, err := s.sync.SyncDeposits(ctx, uid)
		if err != nil {
			if xerr.IsCode(err, xerr.UpstreamUnavailable) {
				// 节点不可用，这一轮全量扫描没意义，等下一轮
				logger.Warn(ctx, "sweep aborted, chain upstream unavailable")
				return
			}
			logger.Error(ctx, "sweep user sync failed", zap.Error(err), zap.Int64("uid", uid))
			continue
		}
		if report.SyncedCount > 0 {
			s.balance.Invalidate(ctx, uid)
			logger.Info(ctx, "sweep credited deposits",
				zap.Int64("uid", uid),
				zap.Int("synced_count", report.SyncedCount),
				zap.Int64("last_synced_block", report.LastSyncedBlock))
		}
	}
}
