package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/logger"
	"investex.com/pkg/safe"
)

// BalanceService 充值余额读取
// dashboard 轮询余额很频繁，redis 缓存 + singleflight 防止
// 同一个 key cache miss 时打爆 DB。
type BalanceService struct {
	ledger domain.LedgerRepo
	rdb    *redis.Client
	sf     singleflight.Group
}

func NewBalanceService(ledger domain.LedgerRepo, rdb *redis.Client) *BalanceService {
	return &BalanceService{
		ledger: ledger,
		rdb:    rdb,
	}
}

func balanceCacheKey(uid int64) string {
	return fmt.Sprintf("bal:deposit:%d", uid)
}

// GetDepositBalance 读余额，缓存优先
func (s *BalanceService) GetDepositBalance(ctx context.Context, uid int64) (decimal.Decimal, error) {
	key := balanceCacheKey(uid)

	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			if d, derr := decimal.NewFromString(val); derr == nil {
				return d, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// redis 抖动降级直查 DB，不挡读
			logger.Warn(ctx, "balance cache read failed", zap.Error(err))
		}
	}

	// 防击穿：同一时刻只有一个 goroutine 去 DB
	vAny, err, _ := s.sf.Do(key, func() (any, error) {
		v, err := s.ledger.GetDepositBalance(ctx, uid)
		if err != nil {
			return decimal.Zero, err
		}
		if s.rdb != nil {
			// 防雪崩：TTL 打散
			ttl := time.Duration(30+rand.Intn(30)) * time.Second
			_ = s.rdb.Set(ctx, key, v.String(), ttl).Err()
		}
		return v, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return vAny.(decimal.Decimal), nil
}

// Invalidate 入账后删缓存，下次读取回源
func (s *BalanceService) Invalidate(ctx context.Context, uid int64) {
	if s.rdb == nil {
		return
	}
	key := balanceCacheKey(uid)
	s.rdb.Del(ctx, key)
	// 延迟删，把 "旧读回填" 再清掉
	safe.Go(func() {
		time.Sleep(500 * time.Millisecond)
		s.rdb.Del(context.Background(), key)
	})
}

// ListDeposits 充值流水分页
func (s *BalanceService) ListDeposits(ctx context.Context, uid int64, page, limit int) ([]*domain.LedgerTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.ledger.ListDeposits(ctx, uid, page, limit)
}
