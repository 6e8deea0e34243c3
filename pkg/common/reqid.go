package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = "request_id"
	// 认证中间件写入的用户ID
	CtxKeyUserID = "user_id"
)

func New() string { return uuid.NewString() }

// 获取id
func RequestIDFromGin(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserIDFromGin 读取认证中间件写入的用户ID，0 表示未认证
func UserIDFromGin(c *gin.Context) int64 {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if uid, ok := v.(int64); ok {
			return uid
		}
	}
	return 0
}
