package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"investex.com/pkg/logger"
	"investex.com/pkg/xerr"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailFromErr 按业务错误码映射 HTTP 状态返回
// 对外只回 code + message（data=null），内部细节走日志
func FailFromErr(c *gin.Context, err error) {
	code := xerr.Code(err)
	msg := xerr.MapErrMsg(code)
	httpStatus := mapBizToHTTP(code)

	if httpStatus >= http.StatusInternalServerError {
		logger.Error(c, "http error",
			zap.String("request_id", RequestIDFromGin(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("biz_code", code),
			zap.Error(err),
		)
	}
	Fail(c, httpStatus, code, msg)
}

func mapBizToHTTP(code int) int {
	switch code {
	case xerr.RequestParamsError:
		return http.StatusBadRequest
	case xerr.Unauthorized:
		return http.StatusUnauthorized
	case xerr.RecordNotFound:
		return http.StatusNotFound
	case xerr.WalletNotProvisioned:
		// 前置条件不满足：用户还没开通充值地址
		return http.StatusPreconditionFailed
	case xerr.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
