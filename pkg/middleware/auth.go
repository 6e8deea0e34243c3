package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"investex.com/internal/auth"
	"investex.com/pkg/common"
	"investex.com/pkg/xerr"
)

// Auth 解析 Authorization: Bearer <token> 并换取用户ID
// 校验失败直接 401 终止，后续 handler 可以放心从 ctx 里取 uid
func Auth(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = strings.TrimSpace(after)
		}

		uid, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, xerr.Unauthorized, xerr.MapErrMsg(xerr.Unauthorized))
			c.Abort()
			return
		}

		c.Set(common.CtxKeyUserID, uid)
		c.Next()
	}
}
