package middleware

import (
	"SProject/service/ratelimit"

	"github.com/gin-gonic/gin"
)

// 路由注册封装：每条路由声明要不要认证、走哪个限流档。
// main 启动时先 Setup 注入具体实现。

type RouteOpt struct {
	IsAuth bool
	Tier   ratelimit.Tier // 空则不限流
}

var (
	authMid gin.HandlerFunc
	limiter *ratelimit.Limiter
)

func Setup(auth gin.HandlerFunc, l *ratelimit.Limiter) {
	authMid = auth
	limiter = l
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if opt.Tier != "" && limiter != nil {
		hs = append(hs, RateLimit(limiter, opt.Tier))
	}
	if opt.IsAuth && authMid != nil {
		hs = append(hs, authMid)
	}
	return append(hs, handler)
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

// 封装 GET
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}

// 封装 DELETE
func DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, chain(handler, opt)...)
}
