package security

import (
	"strings"

	"SProject/global"
	mid "SProject/middleware"
	usersrv "SProject/module/user/service"
	"SProject/tools/errs"
	jwtlib "SProject/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续模块统一用这个 key 读取会话身份
const CtxUserSession = "userSession"

type Options struct {
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true，兼容 Authorization: Bearer xxx
	HeaderPlatform            string // 默认 "platform"
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
		HeaderPlatform:            "platform",
	}
}

// Middleware 会话认证：JWT 验签拿到 sid，再查缓存条目确认会话还活着。
// 令牌本身没过期但缓存条目没了（被踢/被撤销/自然过期）一样拒绝——
// 缓存是存活权威。
func Middleware(opts *Options, jwtOpts jwtlib.Options, sessions *usersrv.SessionManager) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			mid.AbortFail(c, errs.ErrTokenExpired.WrapMsg("missing token"))
			return
		}

		claims, err := jwtlib.Verify(jwtOpts, token)
		if err != nil {
			mid.AbortFail(c, errs.ErrTokenExpired.WrapMsg("token verify"))
			return
		}
		sid := claims.SessionID()
		if sid == "" {
			mid.AbortFail(c, errs.ErrTokenExpired.WrapMsg("token without session"))
			return
		}

		userID, alive, err := sessions.LiveUserID(c.Request.Context(), sid)
		if err != nil {
			// 查不了权威存储就不能放行
			mid.AbortFail(c, errs.ErrStoreUnavailable.WrapMsg("session liveness check"))
			return
		}
		if !alive || userID != claims.UserID() {
			mid.AbortFail(c, errs.ErrTokenExpired.WrapMsg("session expired or revoked"))
			return
		}

		c.Set(CtxUserSession, global.UserSession{
			SessionId: sid,
			UserId:    userID,
			Platform:  strings.TrimSpace(c.GetHeader(opts.HeaderPlatform)),
		})

		// last_activity_at 尽力而为
		sessions.Touch(c.Request.Context(), sid)

		c.Next()
	}
}

// Session 从 gin context 取会话身份
func Session(c *gin.Context) (global.UserSession, bool) {
	v, ok := c.Get(CtxUserSession)
	if !ok {
		return global.UserSession{}, false
	}
	us, ok := v.(global.UserSession)
	return us, ok
}
