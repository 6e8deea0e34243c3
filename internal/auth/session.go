package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"investex.com/pkg/xerr"
)

// session 在 redis 里的 key 前缀，签发侧（登录服务）约定一致
const sessionKeyPrefix = "session:"

// TokenVerifier 身份校验接口
// 核心只把它当成一个 "token -> user_id" 的黑盒，签发不归本服务管
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// SessionVerifier 基于 redis session 的实现
type SessionVerifier struct {
	rdb *redis.Client
}

func NewSessionVerifier(rdb *redis.Client) *SessionVerifier {
	return &SessionVerifier{rdb: rdb}
}

// Verify 校验 bearer token，返回用户ID
// token 不存在/已过期 一律返回 Unauthorized，fail closed
func (v *SessionVerifier) Verify(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, xerr.NewErrCode(xerr.Unauthorized)
	}

	val, err := v.rdb.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, xerr.NewErrCode(xerr.Unauthorized)
		}
		// redis 故障不能把所有人放进来
		return 0, xerr.New(xerr.ServerCommonError, "session store unavailable")
	}

	uid, err := strconv.ParseInt(val, 10, 64)
	if err != nil || uid <= 0 {
		return 0, xerr.NewErrCode(xerr.Unauthorized)
	}
	return uid, nil
}
