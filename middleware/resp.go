package middleware

import (
	"errors"
	"net/http"

	"SProject/tools/errs"

	"github.com/gin-gonic/gin"
)

// 统一响应形态：成功 {code:0, data}，失败 {code, msg, detail}。
// 给调用方的永远是业务码和可解释的结果（剩余配额/重试秒数/被踢设备名），
// 底层传输错误不往外漏。

func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func Fail(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), codeBody(err))
}

func AbortFail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), codeBody(err))
}

func codeBody(err error) errs.CodeError {
	var codeErr errs.CodeError
	if errors.As(errs.Unwrap(err), &codeErr) {
		return codeErr
	}
	return errs.ErrInternalServer
}
