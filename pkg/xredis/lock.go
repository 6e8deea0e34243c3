package xredis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock 基于 SETNX 的建议性锁 (advisory lock)
// 充值同步用它避免同一用户的两个 pass 并发浪费 RPC 调用；
// 正确性不依赖它，幂等由 ledger 的 tx_hash 唯一索引兜底。
type Lock struct {
	rdb *redis.Client
	id  string // 当前节点的唯一ID
}

func NewLock(rdb *redis.Client) *Lock {
	uid := uuid.New().String()
	id := fmt.Sprintf("%s-%d", uid, time.Now().Nanosecond())
	return &Lock{
		rdb: rdb,
		id:  id,
	}
}

// TryAcquire 抢锁，抢到返回 true
// 设置过期时间防止死锁（持有者挂了锁会自动释放）
func (l *Lock) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	success, err := l.rdb.SetNX(ctx, key, l.id, ttl).Result()
	if err != nil {
		return false
	}

	if !success {
		// 抢锁失败，检查锁是不是自己的（用于续期）
		val, _ := l.rdb.Get(ctx, key).Result()
		if val == l.id {
			l.rdb.Expire(ctx, key, ttl)
			return true
		}
	}

	return success
}

// Release 只释放自己持有的锁
func (l *Lock) Release(ctx context.Context, key string) {
	val, err := l.rdb.Get(ctx, key).Result()
	if err != nil || val != l.id {
		return
	}
	l.rdb.Del(ctx, key)
}
