package xerr

import (
	"errors"
	"fmt"
)

// 业务错误码定义
const (
	OK                   = 200
	RequestParamsError   = 400
	Unauthorized         = 401
	RecordNotFound       = 404
	ServerCommonError    = 500
	DbError              = 501
	UpstreamUnavailable  = 503
	WalletNotProvisioned = 512
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// IsCode 判断 err 是否为指定业务码的 CodeError
func IsCode(err error, code int) bool {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Code 提取业务码，非 CodeError 一律按 ServerCommonError 处理
func Code(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

func MapErrMsg(code int) string {
	switch code {
	case RequestParamsError:
		return "参数错误"
	case Unauthorized:
		return "未登录"
	case RecordNotFound:
		return "记录不存在"
	case DbError:
		return "数据库繁忙"
	case UpstreamUnavailable:
		return "链上数据服务暂不可用，请稍后重试"
	case WalletNotProvisioned:
		return "充值地址未开通"
	case ServerCommonError:
		return "服务器开小差了"
	default:
		return "未知错误"
	}
}
