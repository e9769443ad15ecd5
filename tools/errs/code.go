package errs

import (
	"errors"
	"net/http"
)

// 错误码分段：
//   500        服务内部错误
//   1000~1099  通用参数/权限/记录
//   1300~1399  限流与防护
//   1500~1599  令牌与会话
const (
	ServerInternalError = 500 // 服务器内部错误

	ArgsError           = 1001 // 参数错误
	NoPermissionError   = 1002 // 权限不足
	RecordNotFoundError = 1004 // 记录不存在

	RateLimitedError      = 1301 // 触发限流
	StoreUnavailableError = 1302 // 缓存存储不可用（fail-closed 时对外暴露）

	UnauthorizedError = 1101 // 凭证不通过
	TokenExpiredError = 1501 // 令牌过期/会话失效
)

var (
	ErrInternalServer   = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs             = NewCodeError(ArgsError, "ArgsError")
	ErrNoPermission     = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrRecordNotFound   = NewCodeError(RecordNotFoundError, "RecordNotFoundError")
	ErrRateLimited      = NewCodeError(RateLimitedError, "RateLimitedError")
	ErrStoreUnavailable = NewCodeError(StoreUnavailableError, "StoreUnavailableError")
	ErrUnauthorized     = NewCodeError(UnauthorizedError, "UnauthorizedError")
	ErrTokenExpired     = NewCodeError(TokenExpiredError, "TokenExpiredError")
)

// HTTPStatus 取出错误里的业务码并映射为 HTTP 状态码。
// 适配层向外只暴露这套码，底层传输错误不外漏。
func HTTPStatus(err error) int {
	var codeErr CodeError
	if !errors.As(Unwrap(err), &codeErr) {
		return http.StatusInternalServerError
	}
	switch codeErr.Code {
	case ArgsError:
		return http.StatusBadRequest
	case NoPermissionError:
		return http.StatusForbidden
	case RecordNotFoundError:
		return http.StatusNotFound
	case RateLimitedError:
		return http.StatusTooManyRequests
	case StoreUnavailableError:
		return http.StatusServiceUnavailable
	case UnauthorizedError, TokenExpiredError:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 返回错误的业务码；非 CodeError 一律按内部错误处理
func CodeOf(err error) int {
	var codeErr CodeError
	if !errors.As(Unwrap(err), &codeErr) {
		return ServerInternalError
	}
	return codeErr.Code
}
